package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

func TestListFilter(t *testing.T) {
	tests := []struct {
		name string
		in   ports.GenerationFilter
		want bson.M
	}{
		{
			name: "user only",
			in:   ports.GenerationFilter{UserID: "u1"},
			want: bson.M{"user_id": "u1"},
		},
		{
			name: "type and status",
			in:   ports.GenerationFilter{UserID: "u1", Type: domain.GenerationVideo, Status: domain.StatusFailed},
			want: bson.M{"user_id": "u1", "type": domain.GenerationVideo, "status": domain.StatusFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listFilter(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("filter = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("filter[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestStatusFields(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := &domain.Generation{
		Status:    domain.StatusCompleted,
		ResultURL: "https://cdn.example.com/a.png",
		JobHandle: "job-1",
		UpdatedAt: at,
	}

	set := statusFields(g)
	if set["status"] != domain.StatusCompleted {
		t.Errorf("status = %v", set["status"])
	}
	if set["result_url"] != g.ResultURL {
		t.Errorf("result_url = %v", set["result_url"])
	}
	if set["updated_at"] != at {
		t.Errorf("updated_at = %v", set["updated_at"])
	}
	if _, ok := set["credits_charged"]; ok {
		t.Error("credits_charged must never be part of a status update")
	}
}
