package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

var (
	flagConfiguration = &ProtocolConfiguration{}
	configPath        string
	inputPath         string
	command           string
	riotBase          string
	benchOutPath      string
	showReport        bool
	echo              bool
)

func init() {
	klog.InitFlags(nil)
	flag.StringVar(&flagConfiguration.DefaultTimeout, "timeout", defaultSessionTimeout.String(), "default timeout of every expectation")
	flag.StringVar(&flagConfiguration.ExtendedTimeout, "extended-timeout", defaultExtendedTimeout.String(), "timeout of the expectations flagged as extended")
	flag.StringVar(&flagConfiguration.RequireVersion, "require-version", "", "required RIOT version range, e.g. '>=2023.1'")
	flag.StringVar(&configPath, "config", "", "YAML file overriding the built-in protocol")
	flag.StringVar(&inputPath, "input", "", "device output to verify: a file, a tty or '-' for stdin")
	flag.StringVar(&command, "cmd", "", "shell command whose output is verified, e.g. 'make term'")
	flag.StringVar(&riotBase, "riotbase", "", "firmware source tree to describe in the report")
	flag.StringVar(&benchOutPath, "bench-out", "", "write matched benchmark lines in Go benchmark format to this file")
	flag.BoolVar(&showReport, "report", true, "print a summary table after a successful run")
	flag.BoolVar(&echo, "echo", true, "copy the device output to stdout")
}

func main() {
	flag.Parse()

	err := run()
	if err != nil {
		klog.ErrorS(err, "Run failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func loadConfiguration(path string) (*ProtocolConfiguration, error) {
	c := &ProtocolConfiguration{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, err
		}
	}
	return c.applyDefaults(flagConfiguration).applyDefaults(defaultConfiguration()), nil
}

func openSession(c *ProtocolConfiguration, out io.Writer) (*streamSession, error) {
	timeout, err := time.ParseDuration(c.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", c.DefaultTimeout, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	switch {
	case command != "" && inputPath != "":
		return nil, fmt.Errorf("-cmd and -input are mutually exclusive")
	case command != "":
		return openCommandSession(command, timeout, out)
	case inputPath != "":
		return openFileSession(inputPath, timeout, out)
	default:
		return nil, fmt.Errorf("one of -cmd or -input is required")
	}
}

func run() error {
	c, err := loadConfiguration(configPath)
	if err != nil {
		return fmt.Errorf("failed to load the configuration: %w", err)
	}

	p, err := newProtocol(c)
	if err != nil {
		return fmt.Errorf("invalid protocol: %w", err)
	}

	r := &report{}
	if riotBase != "" {
		r.Source, err = describeSource(riotBase)
		if err != nil {
			return err
		}
		klog.InfoS("Verifying firmware", "source", r.Source)
	}

	var out io.Writer
	if echo {
		out = os.Stdout
	}
	s, err := openSession(c, out)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	if err := verify(s, p, r.record); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	klog.InfoS("Verification succeeded", "verifiedLines", len(r.Measurements), "elapsed", time.Since(start))

	if benchOutPath != "" {
		f, err := os.Create(benchOutPath)
		if err != nil {
			return err
		}
		if err := r.writeBenchmarks(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write benchmark results: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if showReport {
		r.show(os.Stdout)
	}
	return nil
}
