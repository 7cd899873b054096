package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bucketsync/bucketsync/pkg/fileset"
	"github.com/bucketsync/bucketsync/pkg/report"
	"github.com/bucketsync/bucketsync/pkg/s3client"
	"github.com/bucketsync/bucketsync/pkg/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bucketsync <LocalPath> <S3Uri>",
		Short: "Cached one-way sync of a local file set to an S3 bucket",
		Long: `bucketsync uploads new and changed local files to an S3 bucket, keeps a
local fingerprint cache to short-circuit unchanged files across runs, and can
delete remote objects that no longer exist locally, subject to a whitelist.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
		Args:    cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			viper.SetEnvPrefix("BUCKETSYNC")
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			viper.AutomaticEnv()
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: run,
	}

	rootCmd.Flags().Bool("create-only", false, "Never overwrite existing remote objects")
	rootCmd.Flags().Bool("force", false, "Upload every file regardless of fingerprint match")
	rootCmd.Flags().Bool("simulate", false, "Compute fingerprints and headers without any remote effects")
	rootCmd.Flags().Bool("delete", false, "Delete remote objects with no local counterpart")
	rootCmd.Flags().Bool("use-cache", false, "Skip files whose cached fingerprint is unchanged, without a remote check")
	rootCmd.Flags().Bool("quiet", false, "Suppress skip and cache output lines")
	rootCmd.Flags().BoolP("verbose", "v", false, "Debug logging")
	rootCmd.Flags().Int("concurrency", 8, "Number of files reconciled in parallel")
	rootCmd.Flags().StringSlice("whitelist", nil, "Remote keys protected from deletion (exact or glob, multiple allowed)")
	rootCmd.Flags().StringSlice("exclude", nil, "Local paths to skip (glob, multiple allowed)")
	rootCmd.Flags().String("cache-file", "", "Fingerprint cache location (default .bucketsync-<bucket>)")
	rootCmd.Flags().String("profile", "", "AWS profile to use")
	rootCmd.Flags().String("region", "", "AWS region (uses default if not specified)")
	rootCmd.Flags().String("endpoint", "", "Custom S3 endpoint (enables path-style addressing)")
	rootCmd.Flags().String("access-key", "", "Static access key (pairs with --secret-key)")
	rootCmd.Flags().String("secret-key", "", "Static secret key")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	setupLogger()

	localPath := args[0]
	bucket, prefix, err := parseS3URI(args[1])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint := viper.GetString("endpoint"); endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	store, err := s3client.NewS3Store(cfg, bucket, s3Opts...)
	if err != nil {
		return err
	}

	walker, err := fileset.NewWalker(localPath, viper.GetStringSlice("exclude"))
	if err != nil {
		return err
	}

	cacheFile := viper.GetString("cache-file")
	if cacheFile == "" {
		cacheFile = ".bucketsync-" + bucket
	}

	counter := &report.Counter{}
	reporter := report.Multi{
		&report.Console{Out: os.Stdout, Quiet: viper.GetBool("quiet")},
		counter,
	}

	s, err := syncer.New(store, syncer.Options{
		Prefix:      prefix,
		CreateOnly:  viper.GetBool("create-only"),
		Force:       viper.GetBool("force"),
		Simulate:    viper.GetBool("simulate"),
		UseCache:    viper.GetBool("use-cache"),
		Delete:      viper.GetBool("delete"),
		Whitelist:   viper.GetStringSlice("whitelist"),
		CacheFile:   cacheFile,
		Concurrency: viper.GetInt("concurrency"),
	}, reporter)
	if err != nil {
		return err
	}

	started := time.Now()
	records, walkErrs := walker.Stream(ctx)

	if err := s.Run(ctx, records, walkErrs); err != nil {
		return fmt.Errorf("sync %s: %w", localPath, err)
	}

	slog.Info("sync complete",
		"create", counter.Count(syncer.StateCreate),
		"update", counter.Count(syncer.StateUpdate),
		"delete", counter.Count(syncer.StateDelete),
		"skip", counter.Count(syncer.StateSkip),
		"cache", counter.Count(syncer.StateCache),
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

func setupLogger() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile := viper.GetString("profile"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region := viper.GetString("region"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	accessKey := viper.GetString("access-key")
	secretKey := viper.GetString("secret-key")
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func parseS3URI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("destination must be an S3 URI (s3://bucket/prefix)")
	}

	rest := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(rest, "/", 2)

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.TrimSuffix(parts[1], "/")
	}

	if bucket == "" {
		return "", "", fmt.Errorf("bucket name cannot be empty")
	}

	return bucket, prefix, nil
}
