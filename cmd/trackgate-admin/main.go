package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackgate/trackgate/pkg/credstore"
	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
	"github.com/trackgate/trackgate/pkg/tracking"
)

const usage = `Usage: trackgate-admin [flags] <command> [args]

Commands:
  create-tenant <id> <name> <tracking-uri> <artifact-root> <admin-user> <admin-password>
      Pass "-" for <tracking-uri> or <artifact-root> to derive them from
      -tracking-base-uri / -artifact-root-base.
  add-user <tenant-id> <username> <password> <role>
  list-tenants
  list-users <tenant-id>

Flags:
`

func main() {
	storeFile := flag.String("store-file", "/var/lib/trackgate/tenants.json", "Path to the credential file")
	bcryptCost := flag.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for new credentials")
	baseURI := flag.String("tracking-base-uri", "", "Shared postgres tracking backend for derived per-tenant URIs")
	rootBase := flag.String("artifact-root-base", "", "Prefix for derived per-tenant artifact roots")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := setupLogger(*logLevel)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	store, err := credstore.NewFileStore(*storeFile)
	if err != nil {
		logger.WithError(err).Fatal("failed to open credential store")
	}
	var opts []tenants.Option
	if *baseURI != "" {
		base := *baseURI
		opts = append(opts, tenants.WithTrackingURIDefault(func(tenantID string) (string, error) {
			return tracking.SchemaTrackingURI(base, tenantID)
		}))
	}
	if *rootBase != "" {
		base := strings.TrimRight(*rootBase, "/")
		opts = append(opts, tenants.WithArtifactRootDefault(func(tenantID string) string {
			return base + "/" + tenantID
		}))
	}
	service := tenants.NewService(store, password.NewBcryptHasher(*bcryptCost), opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := flag.Args()
	switch args[0] {
	case "create-tenant":
		runCreateTenant(ctx, logger, service, args[1:])
	case "add-user":
		runAddUser(ctx, logger, service, args[1:])
	case "list-tenants":
		runListTenants(ctx, logger, service)
	case "list-users":
		runListUsers(ctx, logger, service, args[1:])
	default:
		logger.Errorf("unknown command %q", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func runCreateTenant(ctx context.Context, logger *logrus.Logger, service *tenants.Service, args []string) {
	if len(args) != 6 {
		logger.Fatal("create-tenant needs <id> <name> <tracking-uri> <artifact-root> <admin-user> <admin-password>")
	}

	req := tenants.CreateTenantRequest{
		ID:            args[0],
		Name:          args[1],
		TrackingURI:   args[2],
		ArtifactRoot:  args[3],
		AdminUsername: args[4],
		AdminPassword: args[5],
	}
	// "-" asks for the configured derivation.
	if req.TrackingURI == "-" {
		req.TrackingURI = ""
	}
	if req.ArtifactRoot == "-" {
		req.ArtifactRoot = ""
	}

	tenant, err := service.Create(ctx, req)
	if err != nil {
		logger.WithError(err).Fatal("failed to create tenant")
	}

	logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"admin":     args[4],
	}).Info("tenant created")
}

func runAddUser(ctx context.Context, logger *logrus.Logger, service *tenants.Service, args []string) {
	if len(args) != 4 {
		logger.Fatal("add-user needs <tenant-id> <username> <password> <role>")
	}

	if err := service.AddUser(ctx, args[0], args[1], args[2], tenants.Role(args[3])); err != nil {
		logger.WithError(err).Fatal("failed to add user")
	}

	logger.WithFields(logrus.Fields{
		"tenant_id": args[0],
		"username":  args[1],
		"role":      args[3],
	}).Info("user added")
}

func runListTenants(ctx context.Context, logger *logrus.Logger, service *tenants.Service) {
	ids, err := service.List(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to list tenants")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TENANT\tNAME\tUSERS\tCREATED")
	for _, id := range ids {
		tenant, err := service.Get(ctx, id)
		if err != nil {
			logger.WithError(err).WithField("tenant_id", id).Warn("failed to load tenant")
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			tenant.ID, tenant.Name, len(tenant.Users), tenant.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
}

func runListUsers(ctx context.Context, logger *logrus.Logger, service *tenants.Service, args []string) {
	if len(args) != 1 {
		logger.Fatal("list-users needs <tenant-id>")
	}

	users, err := service.ListUsers(ctx, args[0])
	if err != nil {
		logger.WithError(err).Fatal("failed to list users")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tCREATED")
	for name, info := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, info.Role, info.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
}
