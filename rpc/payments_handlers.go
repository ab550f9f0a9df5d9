package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"paylane/core/types"
	"paylane/crypto"
	"paylane/native/payments"
	"paylane/observability"
)

type registerMerchantParams struct {
	Authority string `json:"authority"`
	Name      string `json:"name"`
	FeeBps    uint16 `json:"feeBps"`
}

type createSessionParams struct {
	Authority string `json:"authority"`
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

type settleNativeParams struct {
	Payment        string `json:"payment"`
	Payer          string `json:"payer"`
	MerchantWallet string `json:"merchantWallet"`
}

type settleTokenParams struct {
	Payment        string `json:"payment"`
	Token          string `json:"token"`
	Payer          string `json:"payer"`
	MerchantWallet string `json:"merchantWallet"`
}

type cancelSessionParams struct {
	Payment string `json:"payment"`
	Caller  string `json:"caller"`
}

type getMerchantParams struct {
	Authority string `json:"authority,omitempty"`
	ID        string `json:"id,omitempty"`
}

type getSessionParams struct {
	ID string `json:"id"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type mintParams struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
	Amount  string `json:"amount"`
}

type merchantJSON struct {
	ID            string `json:"id"`
	Authority     string `json:"authority"`
	Name          string `json:"name"`
	FeeBps        uint16 `json:"feeBps"`
	TotalPayments uint64 `json:"totalPayments"`
	TotalVolume   uint64 `json:"totalVolume"`
}

type paymentJSON struct {
	ID          string  `json:"id"`
	Merchant    string  `json:"merchant"`
	Amount      uint64  `json:"amount"`
	Reference   string  `json:"reference"`
	Memo        string  `json:"memo,omitempty"`
	Token       string  `json:"token"`
	Status      string  `json:"status"`
	CreatedAt   int64   `json:"createdAt"`
	ExpiresAt   int64   `json:"expiresAt"`
	PaidAt      *int64  `json:"paidAt,omitempty"`
	Payer       *string `json:"payer,omitempty"`
	CancelledAt *int64  `json:"cancelledAt,omitempty"`
}

type balanceJSON struct {
	Address string            `json:"address"`
	Balance uint64            `json:"balance"`
	Tokens  map[string]uint64 `json:"tokens,omitempty"`
}

func formatMerchantJSON(m *payments.Merchant) merchantJSON {
	return merchantJSON{
		ID:            hex.EncodeToString(m.Salt[:]),
		Authority:     crypto.NewAddress(crypto.PayPrefix, m.Authority[:]).String(),
		Name:          m.Name,
		FeeBps:        m.FeeBps,
		TotalPayments: m.TotalPayments,
		TotalVolume:   m.TotalVolume,
	}
}

func formatPaymentJSON(p *payments.Payment) paymentJSON {
	out := paymentJSON{
		ID:        hex.EncodeToString(p.Salt[:]),
		Merchant:  hex.EncodeToString(p.Merchant[:]),
		Amount:    p.Amount,
		Reference: hex.EncodeToString(p.Reference[:]),
		Memo:      p.Memo,
		Token:     p.Token,
		Status:    "open",
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}
	if out.Token == "" {
		out.Token = "native"
	}
	switch {
	case p.Paid:
		out.Status = "paid"
	case p.Cancelled:
		out.Status = "cancelled"
	}
	if p.PaidAt != nil {
		at := *p.PaidAt
		out.PaidAt = &at
	}
	if p.Payer != nil {
		payer := crypto.NewAddress(crypto.PayPrefix, (*p.Payer)[:]).String()
		out.Payer = &payer
	}
	if p.CancelledAt != nil {
		at := *p.CancelledAt
		out.CancelledAt = &at
	}
	return out
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseID(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid identifier: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("identifier must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseAmount(value string) (uint64, error) {
	amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], dst)
}

// writePaymentsError maps the engine's sentinel errors onto stable JSON-RPC
// codes. The engine error text travels verbatim in the message: callers
// reconcile on precise error identity.
func writePaymentsError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, payments.ErrMerchantNotFound),
		errors.Is(err, payments.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, id, codePaymentsNotFound, err.Error(), nil)
	case errors.Is(err, payments.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codePaymentsForbidden, err.Error(), nil)
	case errors.Is(err, payments.ErrAddressOccupied),
		errors.Is(err, payments.ErrPaymentAlreadyProcessed),
		errors.Is(err, payments.ErrPaymentAlreadyCancelled),
		errors.Is(err, payments.ErrPaymentExpired),
		errors.Is(err, payments.ErrAddressMismatch):
		writeError(w, http.StatusConflict, id, codePaymentsConflict, err.Error(), nil)
	case errors.Is(err, payments.ErrInsufficientFunds),
		errors.Is(err, payments.ErrMathOverflow):
		writeError(w, http.StatusUnprocessableEntity, id, codePaymentsFunds, err.Error(), nil)
	case errors.Is(err, payments.ErrFeeTooHigh),
		errors.Is(err, payments.ErrInvalidExpiry),
		errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrInvalidName),
		errors.Is(err, payments.ErrInvalidMemo),
		errors.Is(err, payments.ErrInvalidToken),
		errors.Is(err, payments.ErrInvalidPaymentType),
		errors.Is(err, payments.ErrTokenMintMismatch):
		writeError(w, http.StatusBadRequest, id, codePaymentsInvalid, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleRegisterMerchant(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params registerMerchantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	authority, err := parseBech32Address(params.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	merchant, err := s.ledger.RegisterMerchant(authority, params.Name, params.FeeBps)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, formatMerchantJSON(merchant))
	return "ok"
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params createSessionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	authority, err := parseBech32Address(params.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	reference := payments.NewReference()
	if strings.TrimSpace(params.Reference) != "" {
		reference, err = parseID(params.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return "error"
		}
	}
	payment, err := s.ledger.OpenSession(authority, amount, reference, params.Memo, params.Token, params.ExpiresAt)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, formatPaymentJSON(payment))
	return "ok"
}

func (s *Server) handleSettleNative(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params settleNativeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	paymentID, err := parseID(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payer, err := parseBech32Address(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	merchantWallet, err := parseBech32Address(params.MerchantWallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payment, err := s.ledger.SettleNative(paymentID, payer, merchantWallet)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	observability.Settlement().RecordSettlement(payment.Token, payment.Amount)
	writeResult(w, req.ID, formatPaymentJSON(payment))
	return "ok"
}

func (s *Server) handleSettleToken(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params settleTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	paymentID, err := parseID(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payer, err := parseBech32Address(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	merchantWallet, err := parseBech32Address(params.MerchantWallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payment, err := s.ledger.SettleToken(paymentID, params.Token, payer, merchantWallet)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	observability.Settlement().RecordSettlement(payment.Token, payment.Amount)
	writeResult(w, req.ID, formatPaymentJSON(payment))
	return "ok"
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params cancelSessionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	paymentID, err := parseID(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payment, err := s.ledger.CancelSession(paymentID, caller)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	observability.Settlement().RecordCancellation()
	writeResult(w, req.ID, formatPaymentJSON(payment))
	return "ok"
}

func (s *Server) handleGetMerchant(w http.ResponseWriter, req *RPCRequest) string {
	var params getMerchantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	var addr [32]byte
	switch {
	case strings.TrimSpace(params.ID) != "":
		id, err := parseID(params.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return "error"
		}
		addr = id
	case strings.TrimSpace(params.Authority) != "":
		authority, err := parseBech32Address(params.Authority)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return "error"
		}
		addr = payments.MerchantAddress(authority)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "authority or id required")
		return "error"
	}
	merchant, err := s.ledger.GetMerchant(addr)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, formatMerchantJSON(merchant))
	return "ok"
}

func (s *Server) handleGetSession(w http.ResponseWriter, req *RPCRequest) string {
	var params getSessionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payment, err := s.ledger.GetPayment(id)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, formatPaymentJSON(payment))
	return "ok"
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	account, err := s.ledger.Balance(addr)
	if err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, balanceJSON{
		Address: crypto.NewAddress(crypto.PayPrefix, addr[:]).String(),
		Balance: account.Balance,
		Tokens:  account.Tokens,
	})
	return "ok"
}

func (s *Server) handleListEvents(w http.ResponseWriter, req *RPCRequest) string {
	tail := s.ledger.Events()
	out := make([]*types.Event, 0, len(tail))
	for _, evt := range tail {
		carrier, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			continue
		}
		if wire := carrier.Event(); wire != nil {
			out = append(out, wire)
		}
	}
	writeResult(w, req.ID, out)
	return "ok"
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.ledger.Mint(addr, params.Token, amount); err != nil {
		writePaymentsError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}
