package types

import "testing"

func TestParseTagFilter(t *testing.T) {
	filter := ParseTagFilter(" env:prod , team , !tier:spot ,, ")

	if len(filter.Terms) != 3 {
		t.Fatalf("Terms = %d, want 3", len(filter.Terms))
	}
	if filter.Terms[0] != (TagTerm{Key: "env", Value: "prod"}) {
		t.Errorf("term 0 = %+v", filter.Terms[0])
	}
	if filter.Terms[1] != (TagTerm{Key: "team"}) {
		t.Errorf("term 1 = %+v", filter.Terms[1])
	}
	if filter.Terms[2] != (TagTerm{Key: "tier", Value: "spot", Exclude: true}) {
		t.Errorf("term 2 = %+v", filter.Terms[2])
	}
}

func TestTagFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		tags   map[string]string
		want   bool
	}{
		{"empty filter matches all", "", map[string]string{"any": "thing"}, true},
		{"empty filter matches untagged", "", nil, true},
		{"key only requires presence", "team", map[string]string{"team": "platform"}, true},
		{"key only missing", "team", map[string]string{"env": "prod"}, false},
		{"key value match", "env:prod", map[string]string{"env": "prod"}, true},
		{"key value mismatch", "env:prod", map[string]string{"env": "dev"}, false},
		{"include terms are OR'd", "env:prod,env:staging", map[string]string{"env": "staging"}, true},
		{"exclude vetoes include", "env:prod,!tier:spot", map[string]string{"env": "prod", "tier": "spot"}, false},
		{"exclude only passes others", "!tier:spot", map[string]string{"env": "prod"}, true},
		{"exclude only vetoes match", "!tier:spot", map[string]string{"tier": "spot"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := ParseTagFilter(tt.filter)
			if got := filter.Matches(tt.tags); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestTagFilterRoundTrip(t *testing.T) {
	in := "env:prod,team,!tier:spot"
	if got := ParseTagFilter(in).String(); got != in {
		t.Errorf("String() = %q, want %q", got, in)
	}
}

func TestTopologyTotals(t *testing.T) {
	topo := ForwarderTopology{
		Regions: []RegionPlan{
			{Region: "us-east-1", Replicas: 3},
			{Region: "eu-west-1", Replicas: 1},
		},
	}
	if topo.TotalReplicas() != 4 {
		t.Errorf("TotalReplicas = %d, want 4", topo.TotalReplicas())
	}
	if _, ok := topo.Plan("eu-west-1"); !ok {
		t.Error("Plan(eu-west-1) not found")
	}
	topo.Sort()
	if topo.Regions[0].Region != "eu-west-1" {
		t.Errorf("Sort: first region = %s", topo.Regions[0].Region)
	}
}
