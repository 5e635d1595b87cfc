package domain

// FindCarriedValue scans the interaction history from newest to oldest and
// selects the first successful interaction whose type is one of types. It
// returns the value stored under key in that interaction's response data.
//
// An empty types list matches any transaction type. The boolean is false when
// no interaction matches or the matching interaction does not carry the key;
// absence is an expected outcome, never an error.
func FindCarriedValue(history []GatewayInteraction, key string, types ...TransactionType) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		in := history[i]
		if !in.IsSuccessful || !matchesType(in.TransactionType, types) {
			continue
		}
		v, ok := lookup(in.ResponseData, key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}
	return "", false
}

// IsContinuityOrder reports whether the order is a subscription renewal: the
// storefront supplied a parent order id and it differs from this order's id.
func IsContinuityOrder(parentOrderID, orderID string) bool {
	return parentOrderID != "" && orderID != "" && parentOrderID != orderID
}

func matchesType(t TransactionType, types []TransactionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func lookup(pairs []KeyValue, key string) (string, bool) {
	for _, kv := range pairs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}
