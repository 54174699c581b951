package league

import "testing"

func TestDerive(t *testing.T) {
	c := Default()

	tests := []struct {
		coins int64
		want  int
	}{
		{0, 1},
		{9999, 1},
		{10000, 2},
		{10500, 2},
		{99999, 2},
		{100000, 3},
		{1000000, 4},
		{10000000, 5},
		{100000000, 6},
		{999999999, 6},
		{1000000000, 7},
		{1 << 60, 7},
		{-5, 1},
	}

	for _, tt := range tests {
		if got := c.Derive(tt.coins); got != tt.want {
			t.Errorf("Derive(%d) = %d, want %d", tt.coins, got, tt.want)
		}
	}
}

func TestDeriveMonotonic(t *testing.T) {
	c := Default()
	prev := c.Derive(0)
	for coins := int64(0); coins <= 2_000_000_000; coins = coins*3 + 7 {
		got := c.Derive(coins)
		if got < prev {
			t.Fatalf("Derive(%d) = %d dropped below %d", coins, got, prev)
		}
		prev = got
	}
	for _, tier := range c.All() {
		if c.Derive(tier.Threshold) != tier.ID {
			t.Errorf("threshold %d of tier %d derives to %d", tier.Threshold, tier.ID, c.Derive(tier.Threshold))
		}
		if tier.Threshold > 0 && c.Derive(tier.Threshold-1) != tier.ID-1 {
			t.Errorf("just below tier %d should derive to %d", tier.ID, tier.ID-1)
		}
	}
}

func TestRewards(t *testing.T) {
	c := Default()
	want := map[int]int64{1: 0, 2: 50000, 3: 500000, 4: 5000000, 5: 50000000, 6: 500000000, 7: 5000000000}
	for id, r := range want {
		if got := c.Reward(id); got != r {
			t.Errorf("Reward(%d) = %d, want %d", id, got, r)
		}
	}
	if c.Reward(99) != 0 {
		t.Error("unknown tier should have no reward")
	}
	if c.Max() != 7 {
		t.Errorf("Max() = %d", c.Max())
	}
	if n, ok := c.Next(7); ok {
		t.Errorf("Next(7) = %+v, want none", n)
	}
}

func TestDailyReward(t *testing.T) {
	c := Default()
	if got := c.DailyReward(1); got != 100 {
		t.Errorf("day 1 = %d", got)
	}
	if got := c.DailyReward(7); got != 2000 {
		t.Errorf("day 7 = %d", got)
	}
	if got := c.DailyReward(8); got != 500 {
		t.Errorf("fallback = %d", got)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"empty":        `leagues: []`,
		"not zero":     "leagues:\n  - {id: 1, threshold: 5}\n",
		"decreasing":   "leagues:\n  - {id: 1, threshold: 0}\n  - {id: 2, threshold: 0}\n",
		"gap in ids":   "leagues:\n  - {id: 1, threshold: 0}\n  - {id: 3, threshold: 10}\n",
		"invalid yaml": "leagues: [",
	}
	for name, doc := range cases {
		if _, err := Load([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
