package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/plan"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func session(d int, length time.Duration, i intent.Intent) SessionRecord {
	start := day(d).Add(9 * time.Hour)
	end := start.Add(length)
	return SessionRecord{Day: day(d), Start: start, End: &end, Length: length, Intent: i}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want Filter
	}{
		{"role=engineer", Filter{"role", Equals, "engineer"}},
		{"objective~revenue", Filter{"objective", Contains, "revenue"}},
		{"subject!=internal", Filter{"subject", NotEquals, "internal"}},
		{"role=", Filter{"role", Equals, ""}},
		{"note=a=b", Filter{"note", Equals, "a=b"}},
		{"note~x=y", Filter{"note", Contains, "x=y"}},
		{"note=x!=y", Filter{"note=x", NotEquals, "y"}},
		{" role =x", Filter{"role", Equals, "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, expr := range []string{"engineer", "", "=x", "  ~x", "!=y"} {
		_, err := Parse(expr)
		assert.True(t, errors.Is(err, errs.MalformedFilter), "%q: %v", expr, err)
	}
}

func TestEvaluate(t *testing.T) {
	eng := IntentRecord{Intent: intent.Intent{ID: "local:a", Role: "engineer", Objective: "new-revenue-existing"}}
	capital := IntentRecord{Intent: intent.Intent{ID: "local:b", Role: "Engineer", Objective: "École"}}

	roleEq, _ := Parse("role=engineer")
	ok, err := Evaluate(eng, roleEq)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = Evaluate(capital, roleEq)
	assert.False(t, ok, "= is case-sensitive")

	rev, _ := Parse("objective~REVENUE")
	ok, _ = Evaluate(eng, rev)
	assert.True(t, ok)

	school, _ := Parse("objective~école")
	ok, _ = Evaluate(capital, school)
	assert.True(t, ok, "~ folds non-ASCII case")

	ne, _ := Parse("role!=engineer")
	ok, _ = Evaluate(capital, ne)
	assert.True(t, ok)

	_, err = Evaluate(eng, Filter{Field: "colour", Op: Equals, Value: "x"})
	assert.True(t, errors.Is(err, errs.UnknownField))
}

func TestSessionRecordHidesIntentID(t *testing.T) {
	r := session(1, time.Hour, intent.Intent{ID: "local:a", Role: "eng", Trackers: []string{"jira:X-1"}})
	v, ok := r.Field("intent_id")
	assert.True(t, ok)
	assert.Equal(t, "local:a", v)
	v, _ = r.Field("tracker")
	assert.Equal(t, "jira:X-1", v)
	_, ok = r.Field("id")
	assert.False(t, ok)
	v, _ = r.Field("reflection")
	assert.Equal(t, "", v)
}

func TestQueryMatchesRange(t *testing.T) {
	i := intent.Intent{ID: "a", Role: "eng"}
	q := Query{Range: &datespec.Range{From: day(5), To: day(10)}}

	for d, want := range map[int]bool{4: false, 5: true, 10: true, 11: false} {
		ok, err := q.Matches(session(d, time.Hour, i))
		require.NoError(t, err)
		assert.Equal(t, want, ok, "day %d", d)
	}

	ok, err := q.Matches(IntentRecord{Intent: i})
	require.NoError(t, err)
	assert.True(t, ok, "undated records ignore the range")
}

func TestGroupSortTotal(t *testing.T) {
	a := intent.Intent{ID: "a", Subject: "A"}
	b := intent.Intent{ID: "b", Subject: "B"}
	records := []Record{
		session(1, 2*time.Hour, a),
		session(1, time.Hour, b),
		session(2, 3*time.Hour, a),
	}

	groups, err := GroupBy(records, "subject")
	require.NoError(t, err)
	Sort(groups, Usage)

	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Key)
	assert.Equal(t, 5*time.Hour, groups[0].Duration)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "B", groups[1].Key)
	assert.Equal(t, time.Hour, groups[1].Duration)
	assert.Equal(t, 1, groups[1].Count)
	assert.Equal(t, Totals{Duration: 6 * time.Hour, Count: 3}, Total(groups))
}

func TestGroupByMultipleFields(t *testing.T) {
	records := []Record{
		session(1, time.Hour, intent.Intent{Role: "eng", Subject: "api"}),
		session(1, time.Hour, intent.Intent{Role: "eng", Subject: "web"}),
		session(2, time.Hour, intent.Intent{Role: "eng", Subject: "api"}),
	}
	groups, err := GroupBy(records, "role", "subject")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "eng / api", groups[0].Key)
	assert.Equal(t, []string{"eng", "api"}, groups[0].Values)

	all, err := GroupBy(records)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "", all[0].Key)
	assert.Equal(t, 3, all[0].Count)

	_, err = GroupBy(records, "colour")
	assert.True(t, errors.Is(err, errs.UnknownField))
}

func TestSortDomains(t *testing.T) {
	mk := func(keys ...string) []*Group {
		var out []*Group
		for k, key := range keys {
			out = append(out, &Group{Key: key, Duration: time.Duration(k) * time.Hour, Count: 1})
		}
		return out
	}
	keys := func(gs []*Group) []string {
		var out []string
		for _, g := range gs {
			out = append(out, g.Key)
		}
		return out
	}

	gs := mk("2025-01-03", "2025-01-01", "2025-01-02")
	Sort(gs, Chronological)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, keys(gs))

	gs = mk("b", "c", "a")
	Sort(gs, Alphabetical)
	assert.Equal(t, []string{"a", "b", "c"}, keys(gs))

	gs = []*Group{
		{Key: "z", Duration: time.Hour, Count: 1},
		{Key: "y", Duration: time.Hour, Count: 3},
		{Key: "x", Duration: time.Hour, Count: 3},
		{Key: "w", Duration: 2 * time.Hour, Count: 1},
	}
	Sort(gs, Usage)
	assert.Equal(t, []string{"w", "x", "y", "z"}, keys(gs))
}

func TestLimit(t *testing.T) {
	gs := []*Group{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	assert.Len(t, Limit(gs, 0), 3)
	assert.Len(t, Limit(gs, -1), 3)
	assert.Len(t, Limit(gs, 2), 2)
	assert.Len(t, Limit(gs, 5), 3)
}

func TestRun(t *testing.T) {
	a := intent.Intent{ID: "a", Role: "engineer", Objective: "new-revenue-existing", Subject: "A"}
	b := intent.Intent{ID: "b", Role: "engineer", Objective: "ops", Subject: "B"}
	c := intent.Intent{ID: "c", Role: "manager", Objective: "revenue", Subject: "C"}
	records := []Record{
		session(1, 2*time.Hour, a),
		session(1, time.Hour, b),
		session(2, 3*time.Hour, a),
		session(3, 4*time.Hour, c),
	}

	filters, err := ParseAll([]string{"role=engineer"})
	require.NoError(t, err)
	res, err := Run(Sessions, records, Query{Filters: filters, GroupBy: []string{"subject"}, Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, Usage, res.Domain)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "A", res.Groups[0].Key)
	assert.Equal(t, 6*time.Hour, res.Total.Duration, "total is taken before the limit")
	assert.Equal(t, 1, res.Omitted)

	res, err = Run(Sessions, records, Query{GroupBy: []string{"date"}})
	require.NoError(t, err)
	assert.Equal(t, Chronological, res.Domain)
	assert.Equal(t, "2025-01-01", res.Groups[0].Key)
	assert.Equal(t, 10*time.Hour, res.Total.Duration)
}

func TestRunRejectsUnknownFieldOnEmptySet(t *testing.T) {
	_, err := Run(Logs, nil, Query{Filters: []Filter{{Field: "role", Op: Equals, Value: "x"}}})
	assert.True(t, errors.Is(err, errs.UnknownField))

	_, err = Run(Plans, nil, Query{GroupBy: []string{"date"}})
	assert.True(t, errors.Is(err, errs.UnknownField))
}

func TestKinds(t *testing.T) {
	k, err := ParseKind("plans")
	require.NoError(t, err)
	assert.Equal(t, Plans, k)
	assert.Equal(t, Alphabetical, k.Domain(nil))
	assert.Equal(t, Chronological, Logs.Domain(nil))
	assert.Equal(t, Usage, Intents.Domain([]string{"role"}))

	_, err = ParseKind("widgets")
	assert.Error(t, err)

	r := PlanRecord{Plan: &plan.Plan{Source: "local", ValidFrom: day(3), Intents: make([]intent.Intent, 2)}}
	v, _ := r.Field("intents")
	assert.Equal(t, "2", v)
	d, dated := r.Date()
	assert.True(t, dated)
	assert.Equal(t, day(3), d)

	lr := LogRecord{Day: day(15), Timezone: "UTC", Count: 2}
	v, _ = lr.Field("weekday")
	assert.Equal(t, "Wednesday", v)
}
