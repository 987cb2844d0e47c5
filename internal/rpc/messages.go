package rpc

import "encoding/json"

// StatusOK is the Ping status of a healthy server.
const StatusOK = "OK"

type RegisterUserRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterUserResponse struct {
	UserID string `json:"userId"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username          string `json:"username"`
	VerifierCandidate []byte `json:"verifierCandidate"`
}

type LoginResponse struct {
	UserID       string `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutResponse struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// PutDocumentRequest replaces the caller's document.
type PutDocumentRequest struct {
	Document json.RawMessage `json:"document"`
}

type PutDocumentResponse struct{}

type GetDocumentRequest struct{}

// GetDocumentResponse carries the caller's document; Found is false when the
// user has never stored one.
type GetDocumentResponse struct {
	Found    bool            `json:"found"`
	Document json.RawMessage `json:"document,omitempty"`
}

type WatchDocumentRequest struct{}

// DocumentEvent is streamed to watchers after every successful put,
// including puts made by the watching client itself.
type DocumentEvent struct {
	Document json.RawMessage `json:"document"`
}
