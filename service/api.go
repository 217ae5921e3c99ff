// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes the consensus-gated badge registry over JSON HTTP.
package service

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/badge"
	"github.com/luxfi/badge/attest"
	"github.com/luxfi/badge/cache"
	"github.com/luxfi/badge/registry"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// API paths
const (
	ApproveMintPath       = "/approve-mint"
	ApproveInvalidatePath = "/approve-invalidate"
	VotersPath            = "/voters"
	BadgePath             = "/badge"
	BadgesPath            = "/badges"
)

// ApproveMintRequest asks to record a voter's mint approval.
type ApproveMintRequest struct {
	// Voter identity, string-encoded.
	Voter string `json:"voter"`
	// Candidate owner identity, string-encoded.
	Owner string `json:"owner"`
	// Optional hex-encoded BLS signature over the approval digest.
	// Required when the server enforces attestation.
	Signature string `json:"signature,omitempty"`
}

// ApproveMintResponse reports the round state after the approval.
type ApproveMintResponse struct {
	Issued    bool   `json:"issued"`
	TokenID   uint64 `json:"token-id,omitempty"`
	Approvals int    `json:"approvals"`
	Threshold int    `json:"threshold"`
}

// ApproveInvalidateRequest asks to record a voter's invalidation approval.
type ApproveInvalidateRequest struct {
	Voter     string `json:"voter"`
	TokenID   uint64 `json:"token-id"`
	Signature string `json:"signature,omitempty"`
}

// ApproveInvalidateResponse reports the round state after the approval.
type ApproveInvalidateResponse struct {
	Invalidated bool `json:"invalidated"`
	Approvals   int  `json:"approvals"`
	Threshold   int  `json:"threshold"`
}

// VotersResponse lists the voter identities in registry order.
type VotersResponse struct {
	Voters    []string `json:"voters"`
	Threshold int      `json:"threshold"`
}

// BadgeResponse is the JSON representation of a badge record.
type BadgeResponse struct {
	TokenID       uint64 `json:"token-id"`
	Owner         string `json:"owner"`
	URI           string `json:"uri,omitempty"`
	Valid         bool   `json:"valid"`
	IssuedAt      string `json:"issued-at"`
	InvalidatedAt string `json:"invalidated-at,omitempty"`
}

// BadgesResponse lists an owner's token ids in issuance order.
type BadgesResponse struct {
	Owner  string   `json:"owner"`
	Tokens []uint64 `json:"tokens"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves the badge registry API.
type Server struct {
	log       log.Logger
	metrics   *Metrics
	consensus *badge.Consensus
	ledger    *registry.Ledger
	badges    *cache.ReadThrough[badge.TokenID, badge.Badge]
	keys      *attest.KeyRing
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithKeyRing makes the server require and verify BLS attestations on
// every approval request.
func WithKeyRing(keys *attest.KeyRing) ServerOption {
	return func(s *Server) {
		s.keys = keys
	}
}

// NewServer creates a server over the consensus controller and ledger.
func NewServer(
	logger log.Logger,
	metrics *Metrics,
	consensus *badge.Consensus,
	ledger *registry.Ledger,
	cacheSize int,
	opts ...ServerOption,
) (*Server, error) {
	badgeCache, err := cache.NewReadThrough[badge.TokenID, badge.Badge](cacheSize, ledger.Badge)
	if err != nil {
		return nil, fmt.Errorf("failed to create badge cache: %w", err)
	}

	s := &Server{
		log:       logger,
		metrics:   metrics,
		consensus: consensus,
		ledger:    ledger,
		badges:    badgeCache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRoutes installs the API handlers on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(ApproveMintPath, s.handleApproveMint)
	mux.HandleFunc(ApproveInvalidatePath, s.handleApproveInvalidate)
	mux.HandleFunc(VotersPath, s.handleVoters)
	mux.HandleFunc(BadgePath, s.handleBadge)
	mux.HandleFunc(BadgesPath, s.handleBadges)
}

func (s *Server) handleApproveMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.metrics.approveMintRequests.Inc()
	startTime := time.Now()

	var req ApproveMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("could not decode request body", log.Err(err))
		s.writeError(w, http.StatusBadRequest, "could not decode request body")
		return
	}

	voter, err := ids.ShortFromString(req.Voter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed voter identity")
		return
	}
	owner, err := ids.ShortFromString(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed owner identity")
		return
	}

	if s.keys != nil {
		if err := s.verifyAttestation(attest.MintApproval(voter, owner), req.Signature); err != nil {
			s.log.Warn("rejected mint approval attestation",
				log.Stringer("voter", voter),
				log.Err(err),
			)
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	tokenID, issued, err := s.consensus.ApproveMint(r.Context(), voter, owner)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	s.metrics.approvalLatencyMS.Observe(float64(time.Since(startTime).Milliseconds()))
	s.writeJSON(w, ApproveMintResponse{
		Issued:    issued,
		TokenID:   uint64(tokenID),
		Approvals: s.consensus.MintApprovals(owner),
		Threshold: s.consensus.Threshold(),
	})
}

func (s *Server) handleApproveInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.metrics.approveInvalidateRequests.Inc()
	startTime := time.Now()

	var req ApproveInvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("could not decode request body", log.Err(err))
		s.writeError(w, http.StatusBadRequest, "could not decode request body")
		return
	}

	voter, err := ids.ShortFromString(req.Voter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed voter identity")
		return
	}
	tokenID := badge.TokenID(req.TokenID)

	if s.keys != nil {
		if err := s.verifyAttestation(attest.InvalidateApproval(voter, tokenID), req.Signature); err != nil {
			s.log.Warn("rejected invalidate approval attestation",
				log.Stringer("voter", voter),
				log.Err(err),
			)
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	invalidated, err := s.consensus.ApproveInvalidate(r.Context(), voter, tokenID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	if invalidated {
		s.badges.Invalidate(tokenID)
	}

	s.metrics.approvalLatencyMS.Observe(float64(time.Since(startTime).Milliseconds()))
	s.writeJSON(w, ApproveInvalidateResponse{
		Invalidated: invalidated,
		Approvals:   s.consensus.InvalidateApprovals(tokenID),
		Threshold:   s.consensus.Threshold(),
	})
}

func (s *Server) handleVoters(w http.ResponseWriter, r *http.Request) {
	voters := s.consensus.Voters()
	encoded := make([]string, len(voters))
	for i, v := range voters {
		encoded[i] = v.String()
	}
	s.writeJSON(w, VotersResponse{
		Voters:    encoded,
		Threshold: s.consensus.Threshold(),
	})
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed token id")
		return
	}

	b, err := s.badges.Get(badge.TokenID(tokenID))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := BadgeResponse{
		TokenID:  uint64(b.ID),
		Owner:    b.Owner.String(),
		URI:      b.URI,
		Valid:    b.Valid,
		IssuedAt: b.IssuedAt.UTC().Format(time.RFC3339),
	}
	if !b.InvalidatedAt.IsZero() {
		resp.InvalidatedAt = b.InvalidatedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	owner, err := ids.ShortFromString(r.URL.Query().Get("owner"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed owner identity")
		return
	}

	tokens := s.ledger.BadgesOf(owner)
	encoded := make([]uint64, len(tokens))
	for i, id := range tokens {
		encoded[i] = uint64(id)
	}
	s.writeJSON(w, BadgesResponse{
		Owner:  owner.String(),
		Tokens: encoded,
	})
}

func (s *Server) verifyAttestation(approval *attest.Approval, sigHex string) error {
	if sigHex == "" {
		return errors.New("missing attestation signature")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("malformed attestation signature: %w", err)
	}
	return s.keys.Verify(approval, sig)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		s.log.Error("error marshalling JSON response", log.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		s.log.Error("error writing response", log.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, httpStatusCode int, errorMsg string) {
	s.metrics.failedRequests.Inc()

	resp, err := json.Marshal(ErrorResponse{Error: errorMsg})
	if err != nil {
		msg := "error marshalling JSON error response"
		s.log.Error(msg, log.Err(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)

	if _, err := w.Write(resp); err != nil {
		s.log.Error("error writing error response", log.Err(err))
	}
}

// statusFor maps registry and consensus errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, badge.ErrNotAVoter):
		return http.StatusForbidden
	case errors.Is(err, badge.ErrDuplicateApproval), errors.Is(err, badge.ErrAlreadyInvalid):
		return http.StatusConflict
	case errors.Is(err, badge.ErrUnknownToken):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
