package domain

import (
	"github.com/shopspring/decimal"
)

// TransactionType tags a historical gateway interaction with the host operation that produced it.
type TransactionType string

// Transaction type constants used by the host ledger.
const (
	TransactionTypeAuthorize           TransactionType = "Authorize"
	TransactionTypeCapture             TransactionType = "Capture"
	TransactionTypeAuthorizeAndCapture TransactionType = "AuthorizeAndCapture"
	TransactionTypeCredit              TransactionType = "Credit"
	TransactionTypeVoid                TransactionType = "Void"
)

// ConnectionStatus reports how the remote provider call ended.
// The zero value means the status was not set.
type ConnectionStatus string

// Connection status constants.
const (
	ConnectionStatusSuccess ConnectionStatus = "Success"
	ConnectionStatusReject  ConnectionStatus = "Reject"
	ConnectionStatusError   ConnectionStatus = "Error"
)

// Response codes are provider-agnostic.
const (
	ResponseCodeSuccess = "200"
	ResponseCodeFailure = "500"
)

// Custom data keys the host storefront may attach to a request.
const (
	DataKeyStripeCustomerID = "stripe_customer_id"
	DataKeyPaymentIntentID  = "payment_intent_id"
	DataKeyPaymentMethodID  = "payment_method_id"
	DataKeyParentOrderID    = "parentOrderId"
)

// Result keys carried forward through the host's interaction history.
const (
	ResultKeyPaymentIntentID = "payment_intent_id"
	ResultKeyPaymentChargeID = "payment_charge_id"
	ResultKeyPaymentRefundID = "payment_refund_id"
	ResultKeyClientSecret    = "client_secret"
)

// KeyValue is an ordered result pair persisted by the host.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Contact holds the shopper's contact details.
type Contact struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Country   string `json:"country,omitempty"`
}

// Address holds a billing address.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Shopper describes the customer paying for the order.
type Shopper struct {
	CustomerID   string   `json:"customer_id,omitempty"`
	CurrencyCode string   `json:"currency_code,omitempty" validate:"omitempty,len=3"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	Contact      *Contact `json:"contact,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

// Card is the raw card submitted at checkout. It is only present when the
// shopper has no stored payment method.
type Card struct {
	Number      string `json:"number,omitempty"`
	ExpireMonth int    `json:"expire_month,omitempty" validate:"omitempty,gte=1,lte=12"`
	ExpireYear  int    `json:"expire_year,omitempty"`
	CVV         string `json:"cvv,omitempty"`
}

// GatewayInteraction is one entry of the host's append-only transaction history.
type GatewayInteraction struct {
	ID              string          `json:"id,omitempty"`
	IsSuccessful    bool            `json:"is_successful"`
	TransactionType TransactionType `json:"transaction_type"`
	ResponseData    []KeyValue      `json:"response_data,omitempty"`
}

// Transaction identifies the merchant transaction a request belongs to.
type Transaction struct {
	ID           string               `json:"id,omitempty"`
	OrderID      string               `json:"order_id,omitempty"`
	Interactions []GatewayInteraction `json:"gateway_interactions,omitempty"`
}

// TransactionContext carries host-side context for a request.
type TransactionContext struct {
	IsSandbox   bool         `json:"is_sandbox,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// GatewayRequest is the host's canonical request for every transaction operation.
type GatewayRequest struct {
	MethodName string              `json:"method_name,omitempty"`
	Amount     decimal.NullDecimal `json:"amount" validate:"omitempty,gte=0"`
	Shopper    *Shopper            `json:"shopper,omitempty"`
	Card       *Card               `json:"card,omitempty"`
	Data       map[string]string   `json:"data,omitempty"`
	Context    *TransactionContext `json:"context,omitempty"`
}

// GatewayResponse is the uniform result returned to the host.
type GatewayResponse struct {
	IsDeclined             bool             `json:"is_declined"`
	RemoteConnectionStatus ConnectionStatus `json:"remote_connection_status,omitempty"`
	ResponseCode           string           `json:"response_code"`
	ResponseText           string           `json:"response_text"`
	TransactionID          string           `json:"transaction_id,omitempty"`
	ResponseData           []KeyValue       `json:"response_data,omitempty"`
}

// Value returns the value of the first response pair with the given key.
func (r *GatewayResponse) Value(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	return lookup(r.ResponseData, key)
}

// DataValue returns a custom data value, or "" when absent.
func (r *GatewayRequest) DataValue(key string) string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data[key]
}

// TransactionID returns the merchant transaction id, or "".
func (r *GatewayRequest) TransactionID() string {
	if t := r.transaction(); t != nil {
		return t.ID
	}
	return ""
}

// OrderID returns the merchant's own order id, or "".
func (r *GatewayRequest) OrderID() string {
	if t := r.transaction(); t != nil {
		return t.OrderID
	}
	return ""
}

// Interactions returns the transaction history, or nil.
func (r *GatewayRequest) Interactions() []GatewayInteraction {
	if t := r.transaction(); t != nil {
		return t.Interactions
	}
	return nil
}

// IsSandbox reports whether the host flagged the request as a sandbox call.
func (r *GatewayRequest) IsSandbox() bool {
	return r != nil && r.Context != nil && r.Context.IsSandbox
}

// CurrencyCode returns the shopper currency, or "".
func (r *GatewayRequest) CurrencyCode() string {
	if r == nil || r.Shopper == nil {
		return ""
	}
	return r.Shopper.CurrencyCode
}

// CustomerID returns the host's stored-customer identifier, or "".
func (r *GatewayRequest) CustomerID() string {
	if r == nil || r.Shopper == nil {
		return ""
	}
	return r.Shopper.CustomerID
}

// Contact returns the shopper contact, never nil.
func (r *GatewayRequest) Contact() Contact {
	if r == nil || r.Shopper == nil || r.Shopper.Contact == nil {
		return Contact{}
	}
	return *r.Shopper.Contact
}

// Address returns the shopper billing address, never nil.
func (r *GatewayRequest) Address() Address {
	if r == nil || r.Shopper == nil || r.Shopper.Address == nil {
		return Address{}
	}
	return *r.Shopper.Address
}

// WithInteraction returns a shallow copy of the request whose history has the
// given interaction appended. The receiver's history slice is left untouched.
func (r *GatewayRequest) WithInteraction(in GatewayInteraction) *GatewayRequest {
	cp := *r
	ctx := TransactionContext{}
	if r.Context != nil {
		ctx = *r.Context
	}
	txn := Transaction{}
	if ctx.Transaction != nil {
		txn = *ctx.Transaction
	}

	history := make([]GatewayInteraction, 0, len(txn.Interactions)+1)
	history = append(history, txn.Interactions...)
	txn.Interactions = append(history, in)

	ctx.Transaction = &txn
	cp.Context = &ctx
	return &cp
}

func (r *GatewayRequest) transaction() *Transaction {
	if r == nil || r.Context == nil {
		return nil
	}
	return r.Context.Transaction
}
