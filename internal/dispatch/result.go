package dispatch

import "github.com/lupppig/notifyhttp/internal/domain"

// Result is the full account of one dispatch. The host-facing boolean is OK.
type Result struct {
	OK      bool
	Kind    domain.ErrorKind
	Detail  string
	Outcome domain.Outcome
}

func failure(kind domain.ErrorKind, err error, outcome domain.Outcome) Result {
	res := Result{Kind: kind, Outcome: outcome}
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}
