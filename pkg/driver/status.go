package driver

import (
	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/olivere/elastic/v7"
)

// status fields of a post
const (
	deletedField = "deleted"
	pendingField = "pending"
	flaggedField = "flagged"
	ratingField  = "rating"
	safeRating   = "s"
)

// visibilityStatuses decide deleted post visibility on their own when they appear at the
// root. Any other status leaves deleted posts hidden.
var visibilityStatuses = map[string]struct{}{
	"deleted": {},
	"active":  {},
	"any":     {},
	"all":     {},
}

func status(p expr.Predicate) (elastic.Query, expr.Occur) {
	s, _ := p.Cmp.Value().(string)

	var q elastic.Query
	switch s {
	case "pending":
		q = elastic.NewTermQuery(pendingField, true)
	case "flagged":
		q = elastic.NewTermQuery(flaggedField, true)
	case "modqueue":
		q = elastic.NewBoolQuery().Should(
			elastic.NewTermQuery(pendingField, true),
			elastic.NewTermQuery(flaggedField, true),
		).MinimumNumberShouldMatch(1)
	case "deleted":
		q = elastic.NewTermQuery(deletedField, true)
	case "active":
		q = elastic.NewBoolQuery().Must(
			elastic.NewTermQuery(pendingField, false),
			elastic.NewTermQuery(deletedField, false),
			elastic.NewTermQuery(flaggedField, false),
		)
	default:
		// any, all and unknown statuses do not filter
		return nil, p.Occur
	}
	return q, p.Occur
}

// HideDeleted reports whether the implicit must_not deleted:true filter applies. Only the
// direct children of the root are considered: a status inside a group cannot widen the
// outer query.
func HideDeleted(root *expr.Group) bool {
	if root == nil {
		return true
	}

	sawStatus := false
	impliesAny := false
	for _, child := range root.Children {
		p, ok := child.(expr.Predicate)
		if !ok {
			continue
		}
		switch p.Key {
		case metatag.Status:
			sawStatus = true
			s, _ := p.Cmp.Value().(string)
			if _, found := visibilityStatuses[s]; found {
				return false
			}
		case metatag.DelReason, metatag.DeletedBy:
			impliesAny = true
		}
	}
	return sawStatus || !impliesAny
}

// constrainsSafeRating reports whether the root already requires rating:s. Any other rating
// constraint, such as rating:q or -rating:s, still gets the safe mode filter, so rating:q under
// safe mode matches nothing.
func constrainsSafeRating(root *expr.Group) bool {
	for _, p := range root.Predicates(metatag.Rating) {
		if p.Occur == expr.Must && p.Cmp.Value() == safeRating {
			return true
		}
	}
	return false
}
