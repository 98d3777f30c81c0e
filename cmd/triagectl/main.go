package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"triage_service/config"
	grpcHandler "triage_service/internal/delivery/grpc"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const usage = `usage: triagectl diagnose [-api URL] [-grpc host:port] [-concurrency N] [-timeout D] image...

Submits each image for diagnosis and prints the results as JSON.
`

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if len(os.Args) < 2 || os.Args[1] != "diagnose" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	fs := flag.NewFlagSet("diagnose", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage); fs.PrintDefaults() }
	apiURL := fs.String("api", cfg.APIBaseURL, "HTTP API base URL")
	grpcAddr := fs.String("grpc", cfg.GrpcAddr, "gRPC address; when set the HTTP API is not used")
	concurrency := fs.Int("concurrency", cfg.Concurrency, "images submitted at once")
	timeout := fs.Duration("timeout", cfg.Timeout, "overall deadline")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(os.Args[2:])

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	var sub submitter
	if *grpcAddr != "" {
		conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Fatalf("Failed to connect to gRPC server at %s: %v", *grpcAddr, err)
		}
		defer conn.Close()
		sub = &grpcSubmitter{client: grpcHandler.NewDiagnosisClient(conn)}
		logger.Debugf("Submitting via gRPC %s", *grpcAddr)
	} else {
		sub = newHTTPSubmitter(*apiURL, *timeout)
		logger.Debugf("Submitting via HTTP %s", *apiURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	outcomes := submitAll(ctx, sub, paths, *concurrency, logger)
	if err := writeOutcomes(os.Stdout, outcomes); err != nil {
		logger.Fatalf("Failed to write results: %v", err)
	}
	for _, o := range outcomes {
		if o.Error != "" {
			os.Exit(1)
		}
	}
}

// submitAll keeps results in argument order; one failed image does not stop
// the others.
func submitAll(ctx context.Context, sub submitter, paths []string, limit int, logger *logrus.Logger) []outcome {
	if limit < 1 {
		limit = 1
	}
	outcomes := make([]outcome, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			outcomes[i] = submitFile(ctx, sub, path, logger)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func submitFile(ctx context.Context, sub submitter, path string, logger *logrus.Logger) outcome {
	o := outcome{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		o.Error = err.Error()
		logger.Warnf("Skipping %s: %v", path, err)
		return o
	}
	result, status, err := sub.Submit(ctx, filepath.Base(path), data)
	o.Status = status
	if err != nil {
		o.Error = err.Error()
		logger.Warnf("Diagnosis failed for %s: %v", path, err)
		return o
	}
	o.Result = result
	logger.Debugf("Diagnosed %s", path)
	return o
}

func writeOutcomes(w io.Writer, outcomes []outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(outcomes)
}
