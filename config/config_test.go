package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/rbac"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  read_timeout: 5s
database:
  path: /var/lib/leave/leave.db
auth:
  jwt_secret: `+testSecret+`
rbac:
  policies:
    - role: people_ops
      company: acme
      object: leave
      action: override
leave_types:
  - code: annual
    annual_entitlement: "20"
  - code: wellness
    name: Wellness Day
    annual_entitlement: "2"
    cadence: monthly
    consumption_mode: consume_up_to_accrued
    paid: false
`)
	t.Setenv("LEAVE_SERVER_PORT", "9100")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env beats file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout, "default")
	assert.Equal(t, "/var/lib/leave/leave.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.RateLimit.Enabled)

	policies, _ := cfg.RBAC.Rules()
	require.Len(t, policies, 1)
	assert.Equal(t, rbac.Policy{Role: "people_ops", Company: "acme", Object: "leave", Action: "override"}, policies[0])

	require.Len(t, cfg.LeaveTypes, 2)
	require.NotNil(t, cfg.LeaveTypes[1].Paid)
	assert.False(t, *cfg.LeaveTypes[1].Paid)
}

func TestLoad_SecretFromEnv(t *testing.T) {
	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	t.Setenv("LEAVE_AUTH_JWT_SECRET", testSecret)
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Server:    config.ServerConfig{Port: 8080},
			Database:  config.DatabaseConfig{Path: "leave.db"},
			Logger:    config.LoggerConfig{Format: "json"},
			Auth:      config.AuthConfig{JWTSecret: testSecret},
			RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"port", func(c *config.Config) { c.Server.Port = 0 }},
		{"database", func(c *config.Config) { c.Database.Path = "" }},
		{"format", func(c *config.Config) { c.Logger.Format = "xml" }},
		{"short secret", func(c *config.Config) { c.Auth.JWTSecret = "short" }},
		{"rate limit", func(c *config.Config) { c.RateLimit.Burst = 0 }},
		{"leave type code", func(c *config.Config) { c.LeaveTypes = []config.LeaveTypeConfig{{Name: "x"}} }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	disabled := valid()
	disabled.RateLimit = config.RateLimitConfig{}
	assert.NoError(t, disabled.Validate(), "limits are ignored when disabled")
}

func TestConfig_Catalog(t *testing.T) {
	paid := false
	cfg := config.Config{LeaveTypes: []config.LeaveTypeConfig{
		{Code: "annual", AnnualEntitlement: "20"},
		{Code: "wellness", Name: "Wellness Day", AnnualEntitlement: "2", Cadence: "monthly", Paid: &paid},
		{Code: "study", Period: "fiscal_year", FiscalYearStartMonth: 4, Companies: []string{"acme"}},
	}}

	catalog, err := cfg.Catalog()
	require.NoError(t, err)

	annual, err := catalog.Get(leave.TypeAnnual)
	require.NoError(t, err)
	assert.True(t, annual.AnnualEntitlement.Equal(generic.Days(20)))
	assert.Equal(t, "Annual Leave", annual.Name, "unset fields keep the default")

	wellness, err := catalog.Get("wellness")
	require.NoError(t, err)
	assert.Equal(t, generic.CadenceMonthly, wellness.Cadence)
	assert.Equal(t, generic.ConsumeAhead, wellness.ConsumptionMode)
	assert.False(t, wellness.Paid)
	assert.True(t, wellness.Enabled)

	study, err := catalog.Get(leave.TypeStudy)
	require.NoError(t, err)
	assert.Equal(t, time.April, study.Period.FiscalYearStartMonth)
	assert.False(t, study.EnabledFor("globex"))

	assert.Len(t, catalog.List(), len(leave.DefaultLeaveTypes())+1)
}

type noReferences struct{}

func (noReferences) HasRequestsForType(context.Context, leave.TypeCode) (bool, error) {
	return false, nil
}

func TestConfig_CatalogEditsLastForProcessOnly(t *testing.T) {
	// GIVEN: A catalog built from config
	// WHEN: An entry is edited at runtime and the catalog is rebuilt, as on restart
	// THEN: The rebuilt catalog carries the configured definition again

	cfg := config.Config{LeaveTypes: []config.LeaveTypeConfig{{Code: "annual", AnnualEntitlement: "20"}}}

	running, err := cfg.Catalog()
	require.NoError(t, err)
	annual, err := running.Get(leave.TypeAnnual)
	require.NoError(t, err)
	annual.AnnualEntitlement = generic.Days(30)
	require.NoError(t, running.Put(context.Background(), annual, noReferences{}))

	edited, err := running.Get(leave.TypeAnnual)
	require.NoError(t, err)
	assert.True(t, edited.AnnualEntitlement.Equal(generic.Days(30)))

	restarted, err := cfg.Catalog()
	require.NoError(t, err)
	reloaded, err := restarted.Get(leave.TypeAnnual)
	require.NoError(t, err)
	assert.True(t, reloaded.AnnualEntitlement.Equal(generic.Days(20)))
}

func TestConfig_CatalogRejectsBadOverrides(t *testing.T) {
	_, err := (&config.Config{LeaveTypes: []config.LeaveTypeConfig{{Code: "annual", Cadence: "weekly"}}}).Catalog()
	assert.ErrorIs(t, err, leave.ErrValidation)

	_, err = (&config.Config{LeaveTypes: []config.LeaveTypeConfig{{Code: "annual", AnnualEntitlement: "lots"}}}).Catalog()
	assert.Error(t, err)

	_, err = (&config.Config{LeaveTypes: []config.LeaveTypeConfig{{Code: "sabbatical"}}}).Catalog()
	assert.ErrorIs(t, err, leave.ErrValidation, "new types need a name")
}

func TestRBACConfig_DefaultRules(t *testing.T) {
	policies, inheritance := config.RBACConfig{}.Rules()
	wantP, wantI := rbac.DefaultPolicies()
	assert.Equal(t, wantP, policies)
	assert.Equal(t, wantI, inheritance)
}

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "leave.log")
	logger, err := config.NewLogger(config.LoggerConfig{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	logger.Debug("leave request created")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"leave request created"`)
	assert.Contains(t, string(raw), `"timestamp"`)
}
