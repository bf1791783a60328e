package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFping is the reachability probe executable.
const DefaultFping = "fping"

var (
	// min/avg/max in "min/avg/max = 10.1/11.2/12.3"
	rttPattern = regexp.MustCompile(`(\d+\.\d+)/(\d+\.\d+)/(\d+\.\d+)`)

	// loss in "xmt/rcv/%loss = 5/5/0%"
	lossPattern = regexp.MustCompile(`(\d+)%`)
)

// Runner executes an external command and returns its combined output.
// The returned error is the command's exit error, if any.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ReachabilityConfig holds configuration for the reachability probe.
type ReachabilityConfig struct {
	// Host is the ping target (required).
	Host string

	// Count is the number of echo requests per probe.
	// Default: 5
	Count int

	// Timeout bounds the whole invocation.
	// Default: Count seconds plus 10 seconds.
	Timeout time.Duration

	// Binary is the fping executable. Default: "fping".
	Binary string

	// Runner executes the command. Default: ExecRunner.
	Runner Runner

	Logger zerolog.Logger
}

// Reachability probes a host with fping.
type Reachability struct {
	host    string
	count   int
	timeout time.Duration
	binary  string
	runner  Runner
	logger  zerolog.Logger
}

// NewReachability creates a reachability probe.
func NewReachability(cfg ReachabilityConfig) *Reachability {
	if cfg.Count < 1 {
		cfg.Count = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Duration(cfg.Count)*time.Second + 10*time.Second
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultFping
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}

	return &Reachability{
		host:    cfg.Host,
		count:   cfg.Count,
		timeout: cfg.Timeout,
		binary:  cfg.Binary,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
	}
}

// Host returns the probe target.
func (p *Reachability) Host() string {
	return p.host
}

// Probe runs one reachability check.
//
// A non-nil error is returned only when the tool itself cannot be executed
// (wrapping ErrToolMissing). Every other problem, including a non-zero exit
// status, is reported as an unsuccessful Result.
func (p *Reachability) Probe(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, stderr, err := p.runner.Run(ctx, p.binary, "-c", strconv.Itoa(p.count), p.host)
	// fping writes its per-host summary to stderr.
	output := string(stderr)
	if output == "" {
		output = string(stdout)
	}

	if err != nil {
		if isToolMissing(err) {
			return Result{Diagnostic: output, Err: err}, &ToolError{Tool: p.binary, Err: err}
		}
		res := ParseFping(output)
		res.Success = false
		res.Err = fmt.Errorf("ping %s failed: %w", p.host, err)
		p.logger.Debug().Err(err).Str("host", p.host).Msg("reachability probe failed")
		return res, nil
	}

	res := ParseFping(output)
	res.Success = true
	return res, nil
}

func isToolMissing(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

// ParseFping extracts average latency and loss from fping -c summary output.
// Values that cannot be found are left nil.
func ParseFping(output string) Result {
	res := Result{Diagnostic: strings.TrimSpace(output)}

	if m := rttPattern.FindStringSubmatch(output); m != nil {
		if avg, err := strconv.ParseFloat(m[2], 64); err == nil {
			res.AvgLatencyMs = &avg
		}
	}

	if m := lossPattern.FindStringSubmatch(output); m != nil {
		if loss, err := strconv.Atoi(m[1]); err == nil && loss >= 0 && loss <= 100 {
			res.LossPercent = &loss
		}
	}

	return res
}
