package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/echotutor/tutor-service/internal/session"
)

func TestQuestionIndex_Unmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{`0`, 0, false},
		{`3`, 3, false},
		{`"2"`, 2, false},
		{`" 4 "`, 4, false},
		{`-1`, -1, false},
		{`"two"`, 0, true},
		{`1.5`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var q questionIndex
			err := json.Unmarshal([]byte(tt.input), &q)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if int(q) != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, q)
			}
		})
	}
}

func TestAnswerRequest_Validation(t *testing.T) {
	v := newValidator()

	var req answerRequest
	json.Unmarshal([]byte(`{"question_id":0,"answer":""}`), &req)
	if err := v.Struct(req); err != nil {
		t.Errorf("Expected zero id and empty answer to be accepted, got %v", err)
	}

	req = answerRequest{}
	err := v.Struct(req)
	if err == nil {
		t.Fatal("Expected missing fields to fail validation")
	}
	if got := validationDetail(err); got != "question_id is required; answer is required" {
		t.Errorf("Unexpected detail: %q", got)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{session.ErrNotFound, http.StatusNotFound, detailNotFound},
		{fmt.Errorf("wrapped: %w", session.ErrNoContent), http.StatusBadRequest, detailNoContent},
		{&session.RejectionError{Reason: session.ReasonUnsupported}, http.StatusBadRequest, session.ReasonUnsupported},
		{errors.New("disk full"), http.StatusInternalServerError, detailInternal},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, zerolog.Nop(), tt.err)

		if rec.Code != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, rec.Code)
		}
		var body errorResponse
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Detail != tt.detail {
			t.Errorf("%v: expected detail %q, got %q", tt.err, tt.detail, body.Detail)
		}
	}
}
