package symbol

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cloudfoundry-community/vaultkv"
	"github.com/nats-io/nats.go"
)

// WithBuiltins registers a handful of real third-party constructors a
// training/ops config commonly targets as components. Opt-in: the core
// pipeline never calls this itself, so a host that doesn't want the
// extra dependency surface can stick with NewRegistry().
func (r *Registry) WithBuiltins() *Registry {
	r.Register("aws.NewSession", Callable(awsNewSession))
	r.Register("vault.NewClient", Callable(vaultNewClient))
	r.Register("nats.Connect", Callable(natsConnect))
	r.Register("builtins.dict", Callable(builtinsDict))
	r.Register("builtins.list", Callable(builtinsList))
	return r
}

// awsNewSession builds an AWS session, the way a component like
//
//	session:
//	  _target_: aws.NewSession
//	  region: us-east-1
//
// would provision credentials for a training/ops pipeline.
func awsNewSession(kwargs map[string]any) (any, error) {
	cfg := aws.NewConfig()
	if region, ok := kwargs["region"].(string); ok && region != "" {
		cfg = cfg.WithRegion(region)
	}
	if endpoint, ok := kwargs["endpoint"].(string); ok && endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	return session.NewSession(cfg)
}

// vaultNewClient mirrors the teacher's op_vault.go client construction
// (pkg/graft/operators/op_vault.go), trimmed to the fields a config
// component plausibly supplies.
func vaultNewClient(kwargs map[string]any) (any, error) {
	addr, _ := kwargs["address"].(string)
	if addr == "" {
		return nil, fmt.Errorf("vault.NewClient: \"address\" is required")
	}
	token, _ := kwargs["token"].(string)
	namespace, _ := kwargs["namespace"].(string)

	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("vault.NewClient: parsing address: %w", err)
	}

	client := &vaultkv.Client{
		AuthToken: token,
		VaultURL:  parsed,
		Namespace: namespace,
	}
	return client.NewKV(), nil
}

// natsConnect gives a config component a message-bus client.
func natsConnect(kwargs map[string]any) (any, error) {
	url, _ := kwargs["url"].(string)
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url)
}

// builtinsDict returns its kwargs verbatim, for configs that want a
// literal dict-shaped component (spec.md §8.2's worked examples).
func builtinsDict(kwargs map[string]any) (any, error) {
	return kwargs, nil
}

// builtinsList assembles a positional list from numeric-string keys
// ("0", "1", ...), the convention a config uses when it wants list
// construction via a component instead of a literal YAML sequence.
func builtinsList(kwargs map[string]any) (any, error) {
	out := make([]any, 0, len(kwargs))
	for i := 0; ; i++ {
		v, ok := kwargs[strconv.Itoa(i)]
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
