package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/profile"
	"github.com/redis/go-redis/v9"
)

func TestMemoryResolver(t *testing.T) {
	r := profile.NewMemoryResolver()
	ctx := t.Context()

	if _, ok, _ := r.Lookup(ctx, "u1"); ok {
		t.Error("Lookup() on empty resolver should report nothing on record")
	}

	if err := r.SetGrade(ctx, "u1", 6); err != nil {
		t.Fatalf("SetGrade() error = %v", err)
	}
	grade, ok, err := r.Lookup(ctx, "u1")
	if err != nil || !ok || grade != 6 {
		t.Errorf("Lookup() = (%d, %v, %v), want (6, true, nil)", grade, ok, err)
	}

	if err := r.SetGrade(ctx, "u1", 7); !errors.Is(err, profile.ErrInvalidGrade) {
		t.Errorf("SetGrade(7) error = %v, want ErrInvalidGrade", err)
	}
}

type failingResolver struct{}

func (failingResolver) Lookup(context.Context, string) (int, bool, error) {
	return 0, false, errors.New("down")
}

func (failingResolver) SetGrade(context.Context, string, int) error { return errors.New("down") }

func TestGradeOr(t *testing.T) {
	mem := profile.NewMemoryResolver()
	_ = mem.SetGrade(t.Context(), "known", 5)

	tests := []struct {
		name string
		r    profile.Resolver
		user string
		want int
	}{
		{"nil resolver", nil, "known", 4},
		{"known learner", mem, "known", 5},
		{"unknown learner", mem, "other", 4},
		{"failing resolver", failingResolver{}, "known", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := profile.GradeOr(t.Context(), tt.r, tt.user, 4); got != tt.want {
				t.Errorf("GradeOr() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRedisResolver_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:59999"})
	defer client.Close()

	r := profile.NewRedisResolver(client, 0)
	if _, _, err := r.Lookup(t.Context(), "u1"); err == nil {
		t.Error("Lookup() should fail against an unreachable host")
	}
	if got := profile.GradeOr(t.Context(), r, "u1", 4); got != 4 {
		t.Errorf("GradeOr() = %d, want fallback 4", got)
	}
}
