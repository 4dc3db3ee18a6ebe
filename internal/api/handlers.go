package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/saturn/internal/model"
	"github.com/sells-group/saturn/internal/svr"
)

const maxBodyBytes = 1 << 16

// multiplierRequest is the POST /v1/multiplier payload. Absent observed_svr
// and pacing mean "no score" and "no pacing signal".
type multiplierRequest struct {
	BrandID     string   `json:"brand_id" validate:"max=128"`
	AdgroupID   string   `json:"adgroup_id" validate:"required_unless=Shape raw,max=128"`
	ObservedSVR *float64 `json:"observed_svr"`
	Pacing      *float64 `json:"pacing"`
	Shape       string   `json:"shape" validate:"omitempty,oneof=calibrated raw"`
	Mode        string   `json:"mode" validate:"required_if=Shape raw,omitempty,oneof=brand location_group"`
	EntityID    string   `json:"entity_id" validate:"required_if=Shape raw,max=128"`
	Output      string   `json:"output" validate:"omitempty,oneof=quantile multiplier cpsvr"`
}

func (p multiplierRequest) toModel() model.Request {
	score := model.NoScore
	if p.ObservedSVR != nil {
		score = *p.ObservedSVR
	}
	req := model.NewRequest(p.BrandID, p.AdgroupID, score)
	if p.Pacing != nil {
		req = req.WithPacing(*p.Pacing)
	}
	if p.Shape == string(model.ShapeRaw) {
		req.Shape = model.ShapeRaw
		req.Mode = model.Mode(p.Mode)
		req.EntityID = p.EntityID
		req.Output = model.Output(p.Output)
	}
	return req
}

type multiplierResponse struct {
	ModelID string `json:"model_id"`
	model.Result
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"model_id": s.eng.ModelID(),
	})
}

func (s *server) multiplier(w http.ResponseWriter, r *http.Request) {
	var p multiplierRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(p); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	req := p.toModel()
	res, err := s.eng.Run(req)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		s.log.Debug("multiplier request failed",
			zap.String("adgroup_id", req.AdgroupID),
			zap.Error(err),
		)
	}

	if s.rec != nil {
		s.rec.Record(model.ScoredRequest{
			ID:        uuid.NewString(),
			Request:   req,
			Result:    res,
			CreatedAt: time.Now().UTC(),
		})
	}
	writeJSON(w, status, multiplierResponse{ModelID: s.eng.ModelID(), Result: res})
}

func (s *server) hasModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "adgroupID")
	writeJSON(w, http.StatusOK, map[string]any{
		"adgroup_id": id,
		"has_model":  s.eng.HasModel(id),
	})
}

func statusFor(err error) int {
	switch svr.KindOf(err) {
	case svr.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}
