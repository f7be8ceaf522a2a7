package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/yukinko0825/recipe-site/pkg/images"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

const (
	// Multipart field names of a save request.
	fieldRecipe          = "recipe"
	fieldMainImage       = "image"
	fieldStepImagePrefix = "step_image_"

	maxMultipartMemory = 32 << 20
	maxRequestBytes    = 64 << 20
)

type stepRequest struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type draftRequest struct {
	recipe.Draft
	Steps []stepRequest `json:"steps"`
}

// parsedDraft is a decoded save request. The editor holds preview leases
// for the attached step files and must be closed by the caller.
type parsedDraft struct {
	draft  recipe.Draft
	editor *recipe.Editor
}

// parseDraft reads either a JSON body or a multipart form with a "recipe"
// JSON field, an optional "image" file and "step_image_<n>" files keyed by
// zero-based step row.
func (s *Server) parseDraft(w http.ResponseWriter, r *http.Request) (*parsedDraft, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		raw   []byte
		files map[string][]*multipart.FileHeader
		err   error
	)
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, badRequest("invalid multipart body: %v", err)
		}
		raw = []byte(r.FormValue(fieldRecipe))
		files = r.MultipartForm.File
	case "application/json", "":
		if raw, err = io.ReadAll(r.Body); err != nil {
			return nil, badRequest("failed to read body: %v", err)
		}
	default:
		return nil, badRequest("unsupported content type %q", mediaType)
	}

	if err := validateDraft(s.schema, raw); err != nil {
		return nil, badRequest("%v", err)
	}
	var req draftRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, badRequest("malformed recipe: %v", err)
	}
	if req.Category == "" {
		req.Category = recipe.DefaultCategory
	}

	editor := recipe.NewEditor(s.previews)
	rows := make([]recipe.Step, len(req.Steps))
	for i, st := range req.Steps {
		url := st.ImageURL
		rows[i] = recipe.Step{StepNumber: i + 1, Description: st.Description, ImageURL: &url}
	}
	editor.Load(rows)

	p := &parsedDraft{draft: req.Draft, editor: editor}
	if err := p.attach(files); err != nil {
		editor.Close()
		return nil, err
	}
	return p, nil
}

func (p *parsedDraft) attach(files map[string][]*multipart.FileHeader) error {
	for field, headers := range files {
		if len(headers) == 0 {
			continue
		}
		switch {
		case field == fieldMainImage:
			att, err := readAttachment(headers[0])
			if err != nil {
				return err
			}
			p.draft.Image = att
		case strings.HasPrefix(field, fieldStepImagePrefix):
			idx, err := strconv.Atoi(strings.TrimPrefix(field, fieldStepImagePrefix))
			if err != nil {
				return badRequest("invalid step image field %q", field)
			}
			att, err := readAttachment(headers[0])
			if err != nil {
				return err
			}
			if err := p.editor.Attach(idx, att); err != nil {
				return badRequest("%s: %v", field, err)
			}
		default:
			return badRequest("unexpected file field %q", field)
		}
	}
	return nil
}

func readAttachment(fh *multipart.FileHeader) (*images.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest("failed to open %s: %v", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, images.MaxAttachmentBytes+1))
	if err != nil {
		return nil, badRequest("failed to read %s: %v", fh.Filename, err)
	}
	att := images.NewAttachment(fh.Filename, fh.Header.Get("Content-Type"), data)
	if err := att.Validate(); err != nil {
		return nil, badRequest("%s: %v", fh.Filename, err)
	}
	return att, nil
}

// requestError is a client error detected while decoding a request.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}
