package policy

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const admissionQuery = "data.memory"

// Input is what an admission policy sees about a memory candidate
type Input struct {
	Collection string `json:"collection"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
}

// Decision is the result of an admission check
type Decision struct {
	Admit   bool
	Reasons []string
}

// Admission gates memories with Rego rules in package "memory". A memory is
// admitted unless `allow` evaluates to false or `deny` has any message.
//
//	package memory
//
//	deny contains "answer too short" if count(input.answer) < 20
type Admission struct {
	query *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load reads every .rego file in dir. An empty dir or one without policy
// files gives an Admission that admits everything.
func Load(ctx context.Context, dir string) (*Admission, error) {
	if dir == "" {
		return &Admission{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		logging.From(ctx).Warn("no admission policy found", "dir", dir)
		return &Admission{}, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+2)
	options = append(options, rego.Query(admissionQuery), rego.EnablePrintStatements(true))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare admission policy", goerr.V("dir", dir))
	}

	return &Admission{query: &prepared}, nil
}

// Enabled reports whether any policy is loaded
func (x *Admission) Enabled() bool {
	return x != nil && x.query != nil
}

func (x *Admission) Evaluate(ctx context.Context, input *Input) (*Decision, error) {
	if !x.Enabled() {
		return &Decision{Admit: true}, nil
	}

	rs, err := x.query.Eval(ctx,
		rego.EvalInput(input),
		rego.EvalPrintHook(&printHook{ctx: ctx}),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate admission policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &Decision{Admit: true}, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid admission result", goerr.V("value", rs[0].Expressions[0].Value))
	}

	decision := &Decision{Admit: true}
	if v, exists := data["allow"]; exists {
		allow, ok := v.(bool)
		if !ok {
			return nil, goerr.New("allow must be a boolean", goerr.V("allow", v))
		}
		decision.Admit = allow
		if !allow {
			decision.Reasons = append(decision.Reasons, "not allowed by policy")
		}
	}

	if v, exists := data["deny"]; exists {
		msgs, ok := v.([]any)
		if !ok {
			return nil, goerr.New("deny must be a set of strings", goerr.V("deny", v))
		}
		var reasons []string
		for _, m := range msgs {
			s, ok := m.(string)
			if !ok {
				return nil, goerr.New("deny message must be a string", goerr.V("message", m))
			}
			reasons = append(reasons, s)
		}
		sort.Strings(reasons)
		if len(reasons) > 0 {
			decision.Admit = false
			decision.Reasons = append(decision.Reasons, reasons...)
		}
	}

	return decision, nil
}
