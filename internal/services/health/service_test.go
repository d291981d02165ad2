package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusWithoutChecks(t *testing.T) {
	report := NewService().Status(context.Background())
	assert.True(t, report.OK)
	assert.Nil(t, report.Checks)
}

func TestStatusReportsFailingDependency(t *testing.T) {
	svc := NewService()
	svc.Register("postgres", func(ctx context.Context) error { return nil })
	svc.Register("mongodb", func(ctx context.Context) error { return errors.New("no reachable servers") })
	svc.Register("ignored", nil)

	report := svc.Status(context.Background())
	assert.False(t, report.OK)
	assert.Equal(t, map[string]string{
		"postgres": "ok",
		"mongodb":  "no reachable servers",
	}, report.Checks)
	assert.Equal(t, []string{"mongodb", "postgres"}, svc.Names())
}
