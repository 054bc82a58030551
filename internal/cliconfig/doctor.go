// Package cliconfig implements the diagnostics behind `mucbot doctor`:
// config, gateway, Ollama, transcript and Kafka checks with an
// optional safe-fix mode.
package cliconfig

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mucbot/mucbot/internal/config"
	"github.com/mucbot/mucbot/internal/provider"
)

type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

type DoctorCheck struct {
	Name    string
	Status  DoctorStatus
	Message string
}

type DoctorReport struct {
	Checks []DoctorCheck
}

type DoctorOptions struct {
	// Fix applies safe fixes: create a default config file when none
	// exists and tighten its permissions.
	Fix bool
	// ProbeTimeout bounds each network probe.
	ProbeTimeout time.Duration
}

func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(name string, status DoctorStatus, format string, args ...any) {
	r.Checks = append(r.Checks, DoctorCheck{
		Name:    name,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	})
}

func RunDoctor() (DoctorReport, error) {
	return RunDoctorWithOptions(DoctorOptions{})
}

func RunDoctorWithOptions(opts DoctorOptions) (DoctorReport, error) {
	report := DoctorReport{Checks: make([]DoctorCheck, 0, 8)}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}

	cfgPath, err := config.ConfigPath()
	if err != nil {
		report.add("config_path", DoctorFail, "cannot resolve config path: %v", err)
		return report, nil
	}

	if _, err := os.Stat(cfgPath); err != nil {
		switch {
		case !os.IsNotExist(err):
			report.add("config_file", DoctorFail, "cannot access config file: %v", err)
		case opts.Fix:
			if saveErr := config.Save(config.DefaultConfig()); saveErr != nil {
				report.add("config_file", DoctorFail, "failed to create default config: %v", saveErr)
			} else {
				report.add("config_file", DoctorPass, "created default config at %s", cfgPath)
			}
		default:
			report.add("config_file", DoctorWarn, "config file not found at %s (env-only setup)", cfgPath)
		}
	} else {
		report.add("config_file", DoctorPass, "config file found at %s", cfgPath)
		checkConfigPermissions(&report, cfgPath, opts.Fix)
	}

	cfg, err := config.Load()
	if err != nil {
		report.add("config_load", DoctorFail, "config load failed: %v", err)
		return report, nil
	}
	report.add("config_load", DoctorPass, "config loaded successfully")

	if err := cfg.Validate(); err != nil {
		report.add("config_complete", DoctorFail, "%v", err)
	} else {
		report.add("config_complete", DoctorPass, "all required settings present")
	}

	checkGateway(&report, cfg, opts.ProbeTimeout)
	checkOllama(&report, cfg, opts.ProbeTimeout)
	checkTranscript(&report, cfg)
	checkKafka(&report, cfg, opts.ProbeTimeout)

	return report, nil
}

// checkConfigPermissions flags a world-readable config file; the bot
// password lives in it.
func checkConfigPermissions(report *DoctorReport, path string, fix bool) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o077 == 0 {
		report.add("config_permissions", DoctorPass, "config file is private (%v)", info.Mode().Perm())
		return
	}
	if fix {
		if err := os.Chmod(path, 0o600); err != nil {
			report.add("config_permissions", DoctorFail, "failed to chmod config to 0600: %v", err)
			return
		}
		report.add("config_permissions", DoctorPass, "tightened config permissions to 0600")
		return
	}
	report.add("config_permissions", DoctorWarn,
		"config file mode %v is readable by others (contains BOT_PASSWORD); run doctor --fix", info.Mode().Perm())
}

func checkGateway(report *DoctorReport, cfg *config.Config, timeout time.Duration) {
	gwURL := strings.TrimSpace(cfg.Gateway.URL)
	if gwURL == "" {
		report.add("gateway_reachable", DoctorFail, "gateway url is empty")
		return
	}

	if !urlIsLoopback(gwURL) && strings.TrimSpace(cfg.Gateway.Token) == "" {
		report.add("gateway_auth", DoctorWarn, "non-loopback gateway %s without GATEWAY_TOKEN", gwURL)
	} else {
		report.add("gateway_auth", DoctorPass, "gateway endpoint scope is sound")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gwURL, nil)
	if err != nil {
		report.add("gateway_reachable", DoctorFail, "bad gateway url %q: %v", gwURL, err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		report.add("gateway_reachable", DoctorFail, "gateway not reachable at %s: %v", gwURL, err)
		return
	}
	resp.Body.Close()
	// Any HTTP answer means the daemon is up; the path may 404.
	report.add("gateway_reachable", DoctorPass, "gateway answered at %s", gwURL)
}

func checkOllama(report *DoctorReport, cfg *config.Config, timeout time.Duration) {
	if strings.TrimSpace(cfg.AI.OllamaURL) == "" {
		report.add("ollama", DoctorFail, "OLLAMA_URL is empty")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if provider.NewOllama(cfg.AI.OllamaURL).Healthy(ctx) {
		report.add("ollama", DoctorPass, "ollama healthy at %s", cfg.AI.OllamaURL)
	} else {
		report.add("ollama", DoctorFail, "ollama not reachable at %s", cfg.AI.OllamaURL)
	}
}

func checkTranscript(report *DoctorReport, cfg *config.Config) {
	if !cfg.Transcript.Enabled() {
		report.add("transcript", DoctorWarn, "transcript store disabled (TRANSCRIPT_DB empty)")
		return
	}
	dir := filepath.Dir(cfg.Transcript.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		report.add("transcript", DoctorFail, "transcript dir %s not creatable: %v", dir, err)
		return
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		report.add("transcript", DoctorFail, "transcript dir %s not writable: %v", dir, err)
		return
	}
	os.Remove(probe)
	report.add("transcript", DoctorPass, "transcript path %s is writable", cfg.Transcript.Path)
}

func checkKafka(report *DoctorReport, cfg *config.Config, timeout time.Duration) {
	brokers := cfg.Trace.BrokerList()
	if len(brokers) == 0 {
		report.add("kafka_trace", DoctorWarn, "trace mirror disabled (KAFKA_BROKERS empty)")
		return
	}
	conn, err := net.DialTimeout("tcp", brokers[0], timeout)
	if err != nil {
		report.add("kafka_trace", DoctorFail, "kafka broker %s not reachable: %v", brokers[0], err)
		return
	}
	conn.Close()
	report.add("kafka_trace", DoctorPass, "kafka broker %s reachable, topic %s", brokers[0], cfg.Trace.Topic)
}

func urlIsLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
