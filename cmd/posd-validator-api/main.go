// Package main exposes the validator operator surface - register, remove,
// list, inspect, and toggle staking - as HTTP+JSON. The reference
// implementation exposes this as five JSON-RPC methods
// (registervalidator, removevalidator, listvalidators, getvalidatorinfo,
// setstaking) bound to a wallet-backed JSON-RPC server; this reimplements
// the same five operations without a wallet or a generated gRPC stub.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
	"github.com/bt2c-network/pos-consensus/internal/validator"
)

type config struct {
	ListenAddr     string   `long:"listen-addr" env:"POSD_VALIDATOR_API_LISTEN_ADDR" description:"address to serve the validator api on" default:":8332"`
	MinimumStake   int64    `long:"minimum-stake" env:"POSD_VALIDATOR_API_MINIMUM_STAKE" description:"minimum stake in satoshis" default:"3200000000"`
	AllowedOrigins []string `long:"allowed-origin" env:"POSD_VALIDATOR_API_ALLOWED_ORIGINS" env-delim:"," description:"CORS allowed origins" default:"*"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("validator api failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	registry := validator.NewRegistry(cfg.MinimumStake)
	api := &validatorAPI{registry: registry, logger: logger, stakingEnabled: true}

	mux := http.NewServeMux()
	mux.HandleFunc("/registervalidator", api.handleRegister)
	mux.HandleFunc("/removevalidator", api.handleRemove)
	mux.HandleFunc("/listvalidators", api.handleList)
	mux.HandleFunc("/getvalidatorinfo", api.handleInfo)
	mux.HandleFunc("/setstaking", api.handleSetStaking)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := cors.New(cors.Options{AllowedOrigins: cfg.AllowedOrigins}).Handler(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting validator api", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// validatorAPI holds the in-memory validator registry this process serves.
// This process neither loads that registry from internal/storage/clickhouse
// nor persists its mutations there; the storage wiring lives only in
// cmd/posd-minter, which keeps a separate registry of its own.
type validatorAPI struct {
	registry       *validator.Registry
	logger         *zap.Logger
	stakingEnabled bool
}

type registerRequest struct {
	ScriptPubKeyHex string `json:"script_pubkey"`
	StakeAmount     int64  `json:"stake_amount"`
}

type registerResponse struct {
	ValidatorID      string `json:"validator_id"`
	StakeAmount      int64  `json:"stake_amount"`
	Status           string `json:"status"`
	RegistrationTime int64  `json:"registration_time"`
}

func (a *validatorAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StakeAmount < 32*100_000_000 {
		writeError(w, http.StatusBadRequest, "minimum validator stake is 32 coin")
		return
	}

	scriptPubKey, err := hex.DecodeString(req.ScriptPubKeyHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid script_pubkey: %v", err))
		return
	}

	now := time.Now().Unix()
	v, err := a.registry.RegisterValidator(scriptPubKey, req.StakeAmount, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		ValidatorID:      v.ID.String(),
		StakeAmount:      v.StakedAmount,
		Status:           v.Status.String(),
		RegistrationTime: v.RegistrationTime,
	})
}

type removeRequest struct {
	ValidatorID string `json:"validator_id"`
}

func (a *validatorAPI) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := chainhash.NewHashFromStr(req.ValidatorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid validator_id: %v", err))
		return
	}

	if err := a.registry.RemoveValidator(*id, time.Now().Unix()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrValidatorNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (a *validatorAPI) handleList(w http.ResponseWriter, r *http.Request) {
	active := a.registry.GetActiveValidators()
	out := make([]validatorView, 0, len(active))
	for _, v := range active {
		out = append(out, toView(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *validatorAPI) handleInfo(w http.ResponseWriter, r *http.Request) {
	idParam := r.URL.Query().Get("validator_id")
	id, err := chainhash.NewHashFromStr(idParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid validator_id: %v", err))
		return
	}

	v, err := a.registry.GetValidator(*id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrValidatorNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toView(v))
}

type setStakingRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *validatorAPI) handleSetStaking(w http.ResponseWriter, r *http.Request) {
	var req setStakingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a.stakingEnabled = req.Enabled
	a.logger.Info("staking toggled", zap.Bool("enabled", req.Enabled))
	writeJSON(w, http.StatusOK, map[string]bool{"staking_enabled": a.stakingEnabled})
}

type validatorView struct {
	ValidatorID     string `json:"validator_id"`
	StakeAmount     int64  `json:"stake_amount"`
	Status          string `json:"status"`
	ReputationScore int32  `json:"reputation_score"`
	BlocksProduced  uint32 `json:"blocks_produced"`
	BlocksMissed    uint32 `json:"blocks_missed"`
}

func toView(v validator.Validator) validatorView {
	return validatorView{
		ValidatorID:     v.ID.String(),
		StakeAmount:     v.StakedAmount,
		Status:          v.Status.String(),
		ReputationScore: v.Reputation.ReputationScore,
		BlocksProduced:  v.Reputation.BlocksProduced,
		BlocksMissed:    v.Reputation.BlocksMissed,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "missing request body")
		return false
	}
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
