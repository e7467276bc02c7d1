package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/user"
)

func Test_assignmentApi_lifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@test.cd", "s3cr3t", user.AdminRoles, true)
	st := env.createUser(t, "Student", "student@test.cd", "s3cr3t", user.StudentRoles, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, st)
	sub := env.createSubject(t, "Mathematics", "MATH101")

	var created assignment.Assignment

	t.Run("student cannot create", func(t *testing.T) {
		body := marchallObj(t, assignment.NewAssignment{Title: "PS1", Description: "Ch 1-3", SubjectID: sub.ID, DueDate: time.Now().Add(48 * time.Hour)})
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments", studentToken, body)
		env.do(req, rec)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, assignment.NewAssignment{Title: "PS1", Description: "Ch 1-3", SubjectID: sub.ID, DueDate: time.Now().Add(48 * time.Hour)})
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments", adminToken, body)
		env.do(req, rec)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create() code = %v; body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if created.TotalMarks != 100 {
			t.Errorf("TotalMarks = %d, want default 100", created.TotalMarks)
		}
		if created.CreatedBy != admin.ID {
			t.Errorf("CreatedBy = %s, want %s", created.CreatedBy, admin.ID)
		}
	})

	t.Run("student listing annotates submission state", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/assignments", studentToken)
		env.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("query() code = %v; body %s", rec.Code, rec.Body.String())
		}
		var annotated []assignment.AssignmentWithStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &annotated); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if len(annotated) != 1 {
			t.Fatalf("expected 1 assignment, got %d", len(annotated))
		}
		if annotated[0].HasSubmitted || annotated[0].SubmissionStatus != "pending" {
			t.Errorf("annotation = %+v, want pending", annotated[0])
		}
	})

	var submitted assignment.Submission

	t.Run("submit", func(t *testing.T) {
		body := marchallObj(t, assignment.NewSubmission{Comments: "done"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/"+created.ID+"/submit", studentToken, body)
		env.do(req, rec)
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit() code = %v; body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if submitted.Status != assignment.StatusSubmitted {
			t.Errorf("status = %s, want submitted", submitted.Status)
		}
		if submitted.StudentID != st.ID {
			t.Errorf("StudentID = %s, want %s", submitted.StudentID, st.ID)
		}
	})

	t.Run("submit to unknown assignment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/nope/submit", studentToken, marchallObj(t, assignment.NewSubmission{}))
		env.do(req, rec)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assignment not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("student cannot list submissions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/assignments/"+created.ID+"/submissions", studentToken)
		env.do(req, rec)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("list submissions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/assignments/"+created.ID+"/submissions", adminToken)
		env.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, submitted)}, rec)
	})

	t.Run("grade", func(t *testing.T) {
		body := marchallObj(t, assignment.GradeSubmission{Marks: 87.5, Feedback: "solid"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/assignments/submissions/"+submitted.ID+"/grade", adminToken, body)
		env.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("grade() code = %v; body %s", rec.Code, rec.Body.String())
		}
		var graded assignment.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if !graded.IsGraded() || graded.Marks == nil || *graded.Marks != 87.5 {
			t.Errorf("graded submission = %+v", graded)
		}
		if graded.GradedBy != admin.ID {
			t.Errorf("GradedBy = %s, want %s", graded.GradedBy, admin.ID)
		}
	})

	t.Run("grade unknown submission", func(t *testing.T) {
		body := marchallObj(t, assignment.GradeSubmission{Marks: 1})
		req, rec := newAuthRequest(http.MethodPut, "/v1/assignments/submissions/nope/grade", adminToken, body)
		env.do(req, rec)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/assignments/"+created.ID, adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("destroy() code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/assignments", adminToken)
		env.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})
}
