package rpc

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veritasor/native/attest"
	"veritasor/native/multisig"
)

// attestationReader is the read-only surface the overlay consumers depend on.
type attestationReader interface {
	Get(business [20]byte, period string) (*attest.Attestation, bool, error)
	GetMetadata(business [20]byte, period string) (*attest.Metadata, bool, error)
	IsRevoked(business [20]byte, period string) bool
}

type feeReader interface {
	BusinessCount(business [20]byte) (uint64, bool, error)
	CalculateFee(business [20]byte) (*big.Int, error)
}

type pauseReader interface {
	IsPaused() bool
	Initialized() bool
}

type proposalReader interface {
	GetProposal(id uint64) (*multisig.Proposal, bool, error)
	Status(id uint64) (multisig.Status, error)
}

// Server exposes the side-effect-free query interface over HTTP. Mutations are
// deliberately absent: submissions and governance run through the host
// transaction path, and this surface only serves derived-view builders such as
// the lender overlay.
type Server struct {
	attest    attestationReader
	fees      feeReader
	access    pauseReader
	proposals proposalReader
	logger    *slog.Logger
}

// NewServer wires the query server to the engine read surfaces.
func NewServer(at attestationReader, fees feeReader, access pauseReader, proposals proposalReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{attest: at, fees: fees, access: access, proposals: proposals, logger: logger}
}

// Router builds the HTTP handler, applying the supplied middlewares to the
// query routes (the health and metrics endpoints stay unthrottled).
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		for _, mw := range middlewares {
			v1.Use(mw)
		}
		v1.Get("/status", s.handleStatus)
		v1.Get("/attestations/{business}/{period}", s.handleAttestation)
		v1.Get("/attestations/{business}/{period}/metadata", s.handleMetadata)
		v1.Get("/businesses/{business}/count", s.handleCount)
		v1.Get("/fees/quote/{business}", s.handleFeeQuote)
		v1.Get("/multisig/proposals/{id}", s.handleProposal)
	})

	return r
}

type attestationResponse struct {
	Business  string `json:"business"`
	Period    string `json:"period"`
	Root      string `json:"root"`
	Timestamp uint64 `json:"timestamp"`
	Version   uint32 `json:"version"`
	FeePaid   string `json:"feePaid"`
	Revoked   bool   `json:"revoked"`
}

func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	business, ok := businessParam(w, r)
	if !ok {
		return
	}
	period := chi.URLParam(r, "period")
	record, exists, err := s.attest.Get(business, period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeNotFound(w, "attestation not found")
		return
	}
	fee := "0"
	if record.FeePaid != nil {
		fee = record.FeePaid.String()
	}
	s.writeJSON(w, http.StatusOK, attestationResponse{
		Business:  hex.EncodeToString(business[:]),
		Period:    period,
		Root:      hex.EncodeToString(record.Root[:]),
		Timestamp: record.Timestamp,
		Version:   record.Version,
		FeePaid:   fee,
		Revoked:   s.attest.IsRevoked(business, period),
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	business, ok := businessParam(w, r)
	if !ok {
		return
	}
	period := chi.URLParam(r, "period")
	meta, exists, err := s.attest.GetMetadata(business, period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeNotFound(w, "no metadata recorded")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"currency": meta.Currency,
		"net":      meta.Net,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	business, ok := businessParam(w, r)
	if !ok {
		return
	}
	count, exists, err := s.fees.BusinessCount(business)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeNotFound(w, "business has no submissions")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	business, ok := businessParam(w, r)
	if !ok {
		return
	}
	fee, err := s.fees.CalculateFee(business)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"fee": fee.String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"initialized": s.access.Initialized(),
		"paused":      s.access.IsPaused(),
	})
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proposal, exists, err := s.proposals.GetProposal(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeNotFound(w, "proposal not found")
		return
	}
	status, err := s.proposals.Status(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        proposal.ID,
		"proposer":  hex.EncodeToString(proposal.Proposer[:]),
		"action":    proposal.Action.Kind.String(),
		"approvals": len(proposal.Approvals),
		"status":    status.String(),
		"createdAt": proposal.CreatedAt,
		"expiresAt": proposal.ExpiresAt,
	})
}

func businessParam(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	var business [20]byte
	raw := strings.TrimPrefix(chi.URLParam(r, "business"), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(business) {
		http.Error(w, "invalid business principal", http.StatusBadRequest)
		return business, false
	}
	copy(business[:], decoded)
	return business, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeNotFound(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("query request failed", "error", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
