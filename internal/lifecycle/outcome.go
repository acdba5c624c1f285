package lifecycle

// Outcome is the result of exactly one dispatch attempt.
type Outcome struct {
	CallSID string
	Reason  string
	ok      bool
}

func Succeeded(callSID string) Outcome {
	return Outcome{CallSID: callSID, ok: true}
}

func Failed(reason string) Outcome {
	if reason == "" {
		reason = "unknown dispatch error"
	}
	return Outcome{Reason: reason}
}

func (o Outcome) OK() bool {
	return o.ok
}
