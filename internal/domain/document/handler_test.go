package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/blobstore"
)

func withPatient(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(auth.WithCaller(req.Context(), auth.Caller{ID: id, Role: auth.RolePatient}))
}

func multipartUpload(t *testing.T, title, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if title != "" {
		w.WriteField("title", title)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte(content))
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandler_Upload_JSON(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	patient := uuid.New()

	req := withPatient(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Lab","url":"https://x/lab.pdf"}`)), patient)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var docs []Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(docs) != 1 || docs[0].URL != "https://x/lab.pdf" {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestHandler_Upload_Multipart(t *testing.T) {
	svc, _, store := newTestService()
	h := NewHandler(svc)
	patient := uuid.New()

	body, ct := multipartUpload(t, "", "ecg.pdf", "application/pdf", "%PDF-1.4")
	req := withPatient(httptest.NewRequest(http.MethodPost, "/", body), patient)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var docs []Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Title != "ecg.pdf" {
		t.Errorf("expected file name as title, got %q", docs[0].Title)
	}
	blobID, ok := blobstore.IDFromURL(docs[0].URL)
	if !ok {
		t.Fatalf("expected blob URL, got %s", docs[0].URL)
	}
	meta, err := store.GetMetadata(c.Request().Context(), blobID)
	if err != nil || meta.OwnerID != patient.String() {
		t.Errorf("expected blob owned by patient, got %+v, %v", meta, err)
	}
}

func TestHandler_Upload_Multipart_RejectsType(t *testing.T) {
	svc, repo, _ := newTestService()
	h := NewHandler(svc)

	body, ct := multipartUpload(t, "Script", "run.sh", "text/x-shellscript", "#!/bin/sh")
	req := withPatient(httptest.NewRequest(http.MethodPost, "/", body), uuid.New())
	req.Header.Set(echo.HeaderContentType, ct)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := h.Upload(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Error("no document should be recorded")
	}
}

func TestHandler_Delete_InvalidID(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	req := withPatient(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.New())
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.Delete(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
