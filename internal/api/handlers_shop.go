package api

import (
	"net/http"
)

// InstallShopRequest is the body of POST /api/shops/install.
type InstallShopRequest struct {
	ShopDomain  string   `json:"shop_domain"`
	AccessToken string   `json:"access_token"`
	Scopes      []string `json:"scopes,omitempty"`
}

// handleInstallShop registers a shop after OAuth and converges its
// webhook subscriptions.
func (s *Server) handleInstallShop(w http.ResponseWriter, r *http.Request) {
	var req InstallShopRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if req.AccessToken == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "access_token is required", nil)
		return
	}

	shop, err := s.shopService.Install(r.Context(), req.ShopDomain, req.AccessToken, req.Scopes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, shop)
}

// ActivateExtensionRequest is the body of POST /api/extensions/activate.
// Token and account id are optional: the stored install token and the
// recorded (or a fresh) account id are used when omitted.
type ActivateExtensionRequest struct {
	ShopDomain  string `json:"shop_domain"`
	AccessToken string `json:"access_token,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
}

// UpdateExtensionRequest is the body of POST /api/extensions/update.
type UpdateExtensionRequest struct {
	ShopDomain          string            `json:"shop_domain"`
	AccessToken         string            `json:"access_token,omitempty"`
	PlatformExtensionID string            `json:"platform_extension_id,omitempty"`
	Settings            map[string]string `json:"settings,omitempty"`
}

// handleActivateExtension creates the web pixel for a shop.
func (s *Server) handleActivateExtension(w http.ResponseWriter, r *http.Request) {
	var req ActivateExtensionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}

	ext, err := s.extensionService.Activate(r.Context(), req.ShopDomain, req.AccessToken, req.AccountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ext)
}

// handleUpdateExtension pushes settings to an existing pixel.
func (s *Server) handleUpdateExtension(w http.ResponseWriter, r *http.Request) {
	var req UpdateExtensionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}

	ext, err := s.extensionService.Update(r.Context(), req.ShopDomain, req.AccessToken, req.PlatformExtensionID, req.Settings)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ext)
}

// handleExtensionStatus reports the recorded pixel for a shop.
func (s *Server) handleExtensionStatus(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("shop")
	if domain == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "shop query parameter is required", nil)
		return
	}

	ext, err := s.extensionService.Status(r.Context(), domain)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ext)
}
