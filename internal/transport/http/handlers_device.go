package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/httputil"
)

type registerDeviceRequest struct {
	DeviceID  string `json:"device_id"`
	PushToken string `json:"push_token"`
}

type registerDeviceResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Platform    string `json:"platform"`
}

func (h *Handlers) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	reg, err := h.users.Register(r.Context(), req.DeviceID, req.PushToken, r.UserAgent())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerDeviceResponse{
		AccessToken: reg.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(reg.ExpiresIn.Seconds()),
		Platform:    reg.Platform,
	})
}
