package engine

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// env carries logging settings for the sessions created with it.
type env struct {
	level ort.LoggingLevel
	logID string
}

// logf logs session lifecycle events: always at info and verbose levels,
// otherwise only with klog -v=1.
func (en *env) logf(format string, args ...any) {
	if en.level <= ort.LoggingLevelInfo {
		klog.Infof("[%s] "+format, append([]any{en.logID}, args...)...)
		return
	}
	klog.V(1).Infof("[%s] "+format, append([]any{en.logID}, args...)...)
}

// customOpDomain groups custom operators under a domain name.
type customOpDomain struct {
	name string
	ops  []ort.CustomOp
}

// find returns the operator registered for opType.
func (d *customOpDomain) find(opType string) (ort.CustomOp, bool) {
	for _, op := range d.ops {
		if op.Name() == opType {
			return op, true
		}
	}
	return nil, false
}

// sessionOptions collects what sessions need beyond the model.
type sessionOptions struct {
	domains []*customOpDomain
}

// CreateEnv creates an environment.
func (e *Engine) CreateEnv(level ort.LoggingLevel, logID string) (ort.Env, error) {
	if level < ort.LoggingLevelVerbose || level > ort.LoggingLevelFatal {
		return 0, ort.NewStatus(ort.InvalidArgument, "invalid logging level %d", level)
	}
	return ort.Env(e.handles.put(&env{level: level, logID: logID})), nil
}

// ReleaseEnv releases an environment.
func (e *Engine) ReleaseEnv(en ort.Env) {
	release[*env](&e.handles, uintptr(en))
}

// CreateSessionOptions creates empty session options.
func (e *Engine) CreateSessionOptions() (ort.SessionOptions, error) {
	return ort.SessionOptions(e.handles.put(&sessionOptions{})), nil
}

// ReleaseSessionOptions releases session options.
func (e *Engine) ReleaseSessionOptions(options ort.SessionOptions) {
	release[*sessionOptions](&e.handles, uintptr(options))
}

// AddCustomOpDomain makes domain available to sessions created with options.
// Operators added to the domain later are visible too.
func (e *Engine) AddCustomOpDomain(options ort.SessionOptions, domain ort.CustomOpDomain) error {
	opts, err := lookup[*sessionOptions](&e.handles, uintptr(options), "session options")
	if err != nil {
		return err
	}
	d, err := lookup[*customOpDomain](&e.handles, uintptr(domain), "custom op domain")
	if err != nil {
		return err
	}
	for _, existing := range opts.domains {
		if existing.name == d.name {
			return ort.NewStatus(ort.InvalidArgument, "custom op domain %q already added", d.name)
		}
	}
	opts.domains = append(opts.domains, d)
	return nil
}

// CreateCustomOpDomain creates an empty custom operator domain.
func (e *Engine) CreateCustomOpDomain(name string) (ort.CustomOpDomain, error) {
	if name == "" || name == "ai.onnx" {
		return 0, ort.NewStatus(ort.InvalidArgument, "custom op domain name %q is reserved", name)
	}
	klog.V(1).Infof("engine: created custom op domain %q", name)
	return ort.CustomOpDomain(e.handles.put(&customOpDomain{name: name})), nil
}

// CustomOpDomainAdd adds op to domain. Operator names are unique per domain.
func (e *Engine) CustomOpDomainAdd(domain ort.CustomOpDomain, op ort.CustomOp) error {
	d, err := lookup[*customOpDomain](&e.handles, uintptr(domain), "custom op domain")
	if err != nil {
		return err
	}
	if op == nil {
		return ort.NewStatus(ort.InvalidArgument, "custom op is nil")
	}
	if v := op.Version(); v > ort.APIVersion {
		return ort.NewStatus(ort.NotImplemented, "custom op %q was built for API version %d, engine supports %d", op.Name(), v, ort.APIVersion)
	}
	name := op.Name()
	if name == "" {
		return ort.NewStatus(ort.InvalidArgument, "custom op has no name")
	}
	if _, dup := d.find(name); dup {
		return ort.NewStatus(ort.InvalidArgument, "custom op %q already registered in domain %q", name, d.name)
	}
	d.ops = append(d.ops, op)
	klog.V(1).Infof("engine: domain %q: added %q", d.name, name)
	return nil
}

// ReleaseCustomOpDomain releases a domain. Sessions already created with it
// keep working.
func (e *Engine) ReleaseCustomOpDomain(domain ort.CustomOpDomain) {
	release[*customOpDomain](&e.handles, uintptr(domain))
}

// CustomOpDomainOps returns the names of the operators in domain, in the
// order they were added.
func (e *Engine) CustomOpDomainOps(domain ort.CustomOpDomain) ([]string, error) {
	d, err := lookup[*customOpDomain](&e.handles, uintptr(domain), "custom op domain")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(d.ops))
	for i, op := range d.ops {
		names[i] = op.Name()
	}
	return names, nil
}
