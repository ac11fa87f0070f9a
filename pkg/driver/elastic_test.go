package driver

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/grindlemire/go-tagquery/pkg/config"
	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/parse"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const errTemplate = "%s:\n    wanted %s\n    got    %s"

var driver = NewElasticDriver()

func mustParse(t *testing.T, input string) *expr.Query {
	t.Helper()
	q, err := parse.String(input, parse.Options{IsFree: config.Default().IsUnlimitedTag})
	require.NoError(t, err)
	return q
}

func mustRender(t *testing.T, input string, opts Options) *Search {
	t.Helper()
	s, err := driver.Render(mustParse(t, input), opts)
	require.NoError(t, err)
	return s
}

func toJSON(t *testing.T, q elastic.Query) string {
	t.Helper()
	src, err := q.Source()
	require.NoError(t, err)
	b, err := json.Marshal(src)
	require.NoError(t, err)
	return string(b)
}

func TestElasticDriver(t *testing.T) {
	type tc struct {
		input string
		opts  Options
		want  string
	}

	tcs := map[string]tc{
		"simple_and": {
			input: "aaa bbb",
			want: `{"bool":{
				"must":[{"term":{"tags":"aaa"}},{"term":{"tags":"bbb"}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"exclude": {
			input: "aaa -bbb",
			want: `{"bool":{
				"must":{"term":{"tags":"aaa"}},
				"must_not":[{"term":{"tags":"bbb"}},{"term":{"deleted":true}}]}}`,
		},
		"or": {
			input: "~aaa ccc ~bbb",
			want: `{"bool":{
				"must":{"term":{"tags":"ccc"}},
				"must_not":{"term":{"deleted":true}},
				"should":[{"term":{"tags":"aaa"}},{"term":{"tags":"bbb"}}],
				"minimum_should_match":"1"}}`,
		},
		"negated_group": {
			input: "aaa -( bbb ccc )",
			want: `{"bool":{
				"must":{"term":{"tags":"aaa"}},
				"must_not":[
					{"bool":{"must":[{"term":{"tags":"bbb"}},{"term":{"tags":"ccc"}}]}},
					{"term":{"deleted":true}}]}}`,
		},
		"soft_group": {
			input: "~( aaa bbb ) ~ccc",
			want: `{"bool":{
				"must_not":{"term":{"deleted":true}},
				"should":[
					{"bool":{"must":[{"term":{"tags":"aaa"}},{"term":{"tags":"bbb"}}]}},
					{"term":{"tags":"ccc"}}],
				"minimum_should_match":"1"}}`,
		},
		"empty_group": {
			input: "( )",
			want: `{"bool":{
				"must":{"match_all":{}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"locked": {
			input: "locked:rating",
			want: `{"bool":{
				"must":{"term":{"rating_locked":true}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"negated_locked": {
			input: "-locked:rating",
			want: `{"bool":{
				"must":{"term":{"rating_locked":false}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"soft_locked": {
			input: "~locked:rating",
			want: `{"bool":{
				"must_not":{"term":{"deleted":true}},
				"should":{"term":{"rating_locked":true}},
				"minimum_should_match":"1"}}`,
		},
		"unknown_lock_is_ignored": {
			input: "locked:bogus",
			want:  `{"bool":{"must_not":{"term":{"deleted":true}}}}`,
		},
		"range": {
			input: "score:>5",
			want: `{"bool":{
				"must":{"range":{"score":{"from":5,"include_lower":false,"include_upper":true,"to":null}}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"negated_range_on_dense_field_is_inverted": {
			input: "-score:>5",
			want: `{"bool":{
				"must":{"range":{"score":{"from":null,"include_lower":true,"include_upper":true,"to":5}}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"negated_range_on_sparse_field": {
			input: "-duration:<5",
			want: `{"bool":{
				"must_not":[
					{"range":{"duration":{"from":null,"include_lower":true,"include_upper":false,"to":5}}},
					{"term":{"deleted":true}}]}}`,
		},
		"between": {
			input: "id:5..15",
			want: `{"bool":{
				"must":{"range":{"id":{"from":5,"include_lower":true,"include_upper":true,"to":15}}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"in": {
			input: "id:8,9,10",
			want: `{"bool":{
				"must":{"terms":{"id":[8,9,10]}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"invalid_value_matches_nothing": {
			input: "date:23025-05-24 aaa",
			want: `{"bool":{
				"must":[{"match_none":{}},{"term":{"tags":"aaa"}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"unresolved_user_matches_nothing": {
			input: "user:nobody",
			want: `{"bool":{
				"must":{"term":{"uploader":-1}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"presence": {
			input: "pool:any -parent:none",
			want: `{"bool":{
				"must":[{"exists":{"field":"pools"}},{"exists":{"field":"parent"}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"none_presence": {
			input: "approver:none",
			want: `{"bool":{
				"must_not":[{"exists":{"field":"approver"}},{"term":{"deleted":true}}]}}`,
		},
		"booleans": {
			input: "hassource:true isparent:false",
			want: `{"bool":{
				"must":{"exists":{"field":"source"}},
				"must_not":[{"term":{"has_children":true}},{"term":{"deleted":true}}]}}`,
		},
		"soft_false_boolean": {
			input: "~ischild:false",
			want: `{"bool":{
				"must_not":{"term":{"deleted":true}},
				"should":{"bool":{"must_not":{"exists":{"field":"parent"}}}},
				"minimum_should_match":"1"}}`,
		},
		"rating": {
			input: "rating:q",
			want: `{"bool":{
				"must":{"term":{"rating":"q"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"md5": {
			input: "md5:ABC",
			want: `{"bool":{
				"must":{"term":{"md5":"abc"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"voted": {
			input: "voted:!3",
			want: `{"bool":{
				"must":{"bool":{"should":[{"term":{"upvotes":3}},{"term":{"downvotes":3}}],"minimum_should_match":"1"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"status_deleted": {
			input: "status:deleted",
			want:  `{"bool":{"must":{"term":{"deleted":true}}}}`,
		},
		"negated_status_deleted": {
			input: "-status:deleted",
			want:  `{"bool":{"must_not":{"term":{"deleted":true}}}}`,
		},
		"status_active": {
			input: "status:active",
			want: `{"bool":{"must":{"bool":{"must":[
				{"term":{"pending":false}},{"term":{"deleted":false}},{"term":{"flagged":false}}]}}}}`,
		},
		"status_any": {
			input: "status:any",
			want:  `{"bool":{}}`,
		},
		"status_modqueue": {
			input: "status:modqueue",
			want: `{"bool":{
				"must":{"bool":{"should":[{"term":{"pending":true}},{"term":{"flagged":true}}],"minimum_should_match":"1"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"nested_status_does_not_leak": {
			input: "aaa ( status:deleted )",
			want: `{"bool":{
				"must":[{"term":{"tags":"aaa"}},{"bool":{"must":{"term":{"deleted":true}}}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"always_show_deleted": {
			input: "aaa",
			opts:  Options{AlwaysShowDeleted: true},
			want:  `{"bool":{"must":{"term":{"tags":"aaa"}}}}`,
		},
		"safe_mode": {
			input: "aaa",
			opts:  Options{EnableSafeMode: true},
			want: `{"bool":{
				"must":[{"term":{"tags":"aaa"}},{"term":{"rating":"s"}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"safe_mode_with_explicit_rating": {
			input: "rating:safe",
			opts:  Options{EnableSafeMode: true},
			want: `{"bool":{
				"must":{"term":{"rating":"s"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"safe_mode_with_other_rating": {
			input: "rating:q",
			opts:  Options{EnableSafeMode: true},
			want: `{"bool":{
				"must":[{"term":{"rating":"q"}},{"term":{"rating":"s"}}],
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"empty_quoted_values": {
			input: `locked:"" status:"" rating:""`,
			want: `{"bool":{
				"must":{"match_none":{}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"order_requires_field": {
			input: "order:comment_bumped",
			want: `{"bool":{
				"must":{"exists":{"field":"comment_bumped_at"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
		"directives_do_not_filter": {
			input: "aaa limit:5 order:score randseed:3",
			want: `{"bool":{
				"must":{"term":{"tags":"aaa"}},
				"must_not":{"term":{"deleted":true}}}}`,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			s := mustRender(t, tc.input, tc.opts)
			require.JSONEq(t, tc.want, toJSON(t, s.Query))
		})
	}
}

func TestHideDeleted(t *testing.T) {
	tcs := map[string]bool{
		"aaa bbb":                       true,
		"aaa bbb status:deleted":        false,
		"aaa ( bbb status:any )":        true,
		"( aaa bbb )":                   true,
		"-status:active":                false,
		"status:all":                    false,
		"status:pending":                true,
		"status:flagged":                true,
		"status:modqueue":               true,
		"deletedby:5":                   false,
		"delreason:spam*":               false,
		"status:pending delreason:spam": true,
		"( deletedby:5 )":               true,
	}

	for input, want := range tcs {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, want, HideDeleted(mustParse(t, input).Root))
		})
	}
}

func TestQuota(t *testing.T) {
	type tc struct {
		input   string
		opts    Options
		wantErr bool
	}

	tcs := map[string]tc{
		"under":            {input: "a b c", opts: Options{MaxTags: 3}},
		"over":             {input: "a b c d", opts: Options{MaxTags: 3}, wantErr: true},
		"free_metatags":    {input: "a b c rating:s status:deleted limit:5", opts: Options{MaxTags: 3}},
		"metatags_count":   {input: "a b c score:5", opts: Options{MaxTags: 3}, wantErr: true},
		"nested_count":     {input: "a ( b ( c d ) )", opts: Options{MaxTags: 3}, wantErr: true},
		"or_tags_count":    {input: "~a ~b ~c ~d", opts: Options{MaxTags: 3}, wantErr: true},
		"already_spent":    {input: "a b c", opts: Options{MaxTags: 3, FreeTagsCount: 1}, wantErr: true},
		"disabled":         {input: "a b c d e f", opts: Options{}},
		"order_counts":     {input: "a b c order:score", opts: Options{MaxTags: 3}, wantErr: true},
		"status_pending_x": {input: "a b status:pending", opts: Options{MaxTags: 2}, wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := driver.Render(mustParse(t, tc.input), tc.opts)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			var target *TooManyTagsError
			require.True(t, errors.As(err, &target), "got %v", err)
			require.Equal(t, tc.opts.MaxTags, target.Max)
		})
	}
}

func TestOrderTable(t *testing.T) {
	type tc struct {
		input string
		key   string
		want  []SortField
	}

	tcs := map[string]tc{
		"default": {
			input: "aaa",
			key:   "id_desc",
			want:  []SortField{desc("id")},
		},
		"unknown": {
			input: "order:sideways",
			key:   "id_desc",
			want:  []SortField{desc("id")},
		},
		"id": {
			input: "order:id",
			key:   "id",
			want:  []SortField{asc("id")},
		},
		"score": {
			input: "order:score",
			key:   "score",
			want:  []SortField{desc("score"), desc("id")},
		},
		"score_inverted_with_minus_value": {
			input: "order:-score",
			key:   "-score",
			want:  []SortField{asc("score"), asc("id")},
		},
		"score_inverted_with_negation": {
			input: "-order:score",
			key:   "-score",
			want:  []SortField{asc("score"), asc("id")},
		},
		"category_count": {
			input: "order:arttags_asc",
			key:   "arttags_asc",
			want:  []SortField{asc("tag_count_artist"), asc("id")},
		},
		"comment": {
			input: "order:comm",
			key:   "comm",
			want:  []SortField{desc("commented_at").missing(MissingLast), desc("id")},
		},
		"note_inverts_to_note_asc": {
			input: "-order:note",
			key:   "note_asc",
			want:  []SortField{asc("noted_at").missing(MissingFirst), asc("id")},
		},
		"comment_bumped_inverts_to_named_key": {
			input: "order:-comment_bumped",
			key:   "comment_bumped_asc",
			want:  []SortField{asc("comment_bumped_at").missing(MissingLast), asc("id")},
		},
		"nested_order_ignored": {
			input: "( order:score )",
			key:   "id_desc",
			want:  []SortField{desc("id")},
		},
		"rank": {
			input: "order:rank",
			key:   "rank",
			want:  []SortField{desc("_score"), desc("id")},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			s := mustRender(t, tc.input, Options{})
			require.Equal(t, tc.key, s.OrderKey)
			require.Equal(t, tc.want, s.Sort)
		})
	}
}

func TestOrderProperties(t *testing.T) {
	for _, key := range OrderKeys() {
		t.Run(key, func(t *testing.T) {
			sort := Order(key, false)
			require.NotEmpty(t, sort)

			last := sort[len(sort)-1]
			require.Equal(t, idField, last.Field, "the last tuple must break ties on id")
			require.Equal(t, sort[0].Ascending, last.Ascending, "the tie break follows the primary direction")

			inverted := Order(key, true)
			last = inverted[len(inverted)-1]
			require.Equal(t, idField, last.Field)
			require.Equal(t, inverted[0].Ascending, last.Ascending)

			if orders[key].inverse == "" {
				require.Equal(t, sort, invert(invert(sort)))
				require.Equal(t, invert(sort), inverted)
			}
		})
	}
}

func TestSorters(t *testing.T) {
	s := &Search{Sort: []SortField{desc("_score"), asc("noted_at").missing(MissingFirst)}}

	var got []string
	for _, sorter := range s.Sorters() {
		src, err := sorter.Source()
		require.NoError(t, err)
		b, err := json.Marshal(src)
		require.NoError(t, err)
		got = append(got, string(b))
	}

	require.JSONEq(t, `{"_score":{"order":"desc"}}`, got[0])
	require.JSONEq(t, `{"noted_at":{"missing":"_first","order":"asc"}}`, got[1])
}

func TestScoreFunctions(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	s := mustRender(t, "aaa order:rank", Options{Now: now, RankWindow: 24 * time.Hour})
	body := toJSON(t, s.Query)
	for _, want := range []string{`"function_score"`, `"boost_mode":"replace"`, "Math.log", `"date2005_05_24":1116936000`, `"score"`, "2024-03-14T00:00:00Z"} {
		if !strings.Contains(body, want) {
			t.Fatalf(errTemplate, "rank query is missing a part", want, body)
		}
	}

	s = mustRender(t, "aaa order:random randseed:42", Options{})
	body = toJSON(t, s.Query)
	for _, want := range []string{`"function_score"`, `"random_score"`, `"seed":42`, `"field":"id"`, `"boost_mode":"replace"`} {
		if !strings.Contains(body, want) {
			t.Fatalf(errTemplate, "random query is missing a part", want, body)
		}
	}

	s = mustRender(t, "aaa order:random", Options{})
	require.NotContains(t, toJSON(t, s.Query), `"seed"`)
}

func TestSearchSource(t *testing.T) {
	s := mustRender(t, "aaa limit:20 order:score_asc", Options{})
	require.Equal(t, 20, s.Limit)

	src, err := s.Source()
	require.NoError(t, err)
	b, err := json.Marshal(src)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"query":{"bool":{"must":{"term":{"tags":"aaa"}},"must_not":{"term":{"deleted":true}}}},
		"sort":[{"score":{"order":"asc"}},{"id":{"order":"asc"}}]
	}`, string(b))
}

func TestRenderRejectsMalformedQueries(t *testing.T) {
	_, err := driver.Render(nil, Options{})
	require.Error(t, err)

	_, err = driver.Render(&expr.Query{Root: &expr.Group{Children: []expr.Node{expr.Or{}}}}, Options{})
	require.Error(t, err)
}
