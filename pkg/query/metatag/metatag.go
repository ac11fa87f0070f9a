// Package metatag is the closed set of key:value keys the tag query language understands.
// Every key carries the grammar its value is parsed with and the index field it lowers onto.
package metatag

import (
	"sort"
	"strings"
)

// Key is a recognised metatag.
type Key int

// recognised metatags
const (
	Unknown Key = iota

	ID
	Width
	Height
	Score
	FavCount
	Change
	TagCount
	CommentCount
	GenTags
	ArtTags
	ContribTags
	CopyTags
	CharTags
	SpecTags
	InvTags
	MetaTags
	LoreTags
	Duration
	MPixels
	Ratio
	Filesize
	Date
	Age

	User
	UserID
	Approver
	Commenter
	Noter
	NoteUpdater
	Fav
	DeletedBy
	Upvote
	Downvote
	Voted
	Pool
	Set
	Parent

	Rating
	Filetype
	Source
	Description
	Note
	DelReason
	MD5
	Child
	Status
	Locked

	HasSource
	HasDescription
	IsParent
	IsChild
	InPool
	PendingReplacements
	ArtVerified
	RatingLocked
	NoteLocked
	StatusLocked

	Order
	Limit
	RandSeed
)

// Grammar is the value grammar of a key.
type Grammar int

// value grammars
const (
	IntRange Grammar = iota
	FloatRange
	FudgedFloat
	RatioRange
	FudgedFilesize
	DateRange
	AgeRange
	UserRef
	PoolRef
	SetRef
	PostRef
	Term
	Wildcard
	Phrase
	List
	Presence
	Enum
	Boolean
	Directive
)

var grammarStrings = map[Grammar]string{
	IntRange:       "int_range",
	FloatRange:     "float_range",
	FudgedFloat:    "fudged_float",
	RatioRange:     "ratio",
	FudgedFilesize: "filesize",
	DateRange:      "date",
	AgeRange:       "age",
	UserRef:        "user",
	PoolRef:        "pool",
	SetRef:         "set",
	PostRef:        "post",
	Term:           "term",
	Wildcard:       "wildcard",
	Phrase:         "phrase",
	List:           "list",
	Presence:       "presence",
	Enum:           "enum",
	Boolean:        "boolean",
	Directive:      "directive",
}

func (g Grammar) String() string {
	return grammarStrings[g]
}

// Spec describes how a key is parsed and lowered.
type Spec struct {
	Name    string
	Aliases []string
	Grammar Grammar
	// Field is the index field the key lowers onto. Empty for keys with custom lowering.
	Field string
	// AnyNone allows key:any and key:none presence checks.
	AnyNone bool
	// Exists lowers a boolean key to an exists query on Field rather than a term on it.
	Exists bool
	// Free keys never count against the tag quota.
	Free bool
}

// Category is a tag category with its own tag count field, for <short>tags metatags and orders.
type Category struct {
	Short string
	Field string
}

// Categories in display order.
var Categories = []Category{
	{Short: "gen", Field: "tag_count_general"},
	{Short: "art", Field: "tag_count_artist"},
	{Short: "contrib", Field: "tag_count_contributor"},
	{Short: "copy", Field: "tag_count_copyright"},
	{Short: "char", Field: "tag_count_character"},
	{Short: "spec", Field: "tag_count_species"},
	{Short: "inv", Field: "tag_count_invalid"},
	{Short: "meta", Field: "tag_count_meta"},
	{Short: "lore", Field: "tag_count_lore"},
}

var specs = map[Key]Spec{
	ID:           {Name: "id", Grammar: IntRange, Field: "id"},
	Width:        {Name: "width", Grammar: IntRange, Field: "width"},
	Height:       {Name: "height", Grammar: IntRange, Field: "height"},
	Score:        {Name: "score", Grammar: IntRange, Field: "score"},
	FavCount:     {Name: "favcount", Grammar: IntRange, Field: "fav_count"},
	Change:       {Name: "change", Grammar: IntRange, Field: "change_seq"},
	TagCount:     {Name: "tagcount", Grammar: IntRange, Field: "tag_count"},
	CommentCount: {Name: "comment_count", Grammar: IntRange, Field: "comment_count"},
	GenTags:      {Name: "gentags", Grammar: IntRange, Field: "tag_count_general"},
	ArtTags:      {Name: "arttags", Grammar: IntRange, Field: "tag_count_artist"},
	ContribTags:  {Name: "contribtags", Grammar: IntRange, Field: "tag_count_contributor"},
	CopyTags:     {Name: "copytags", Grammar: IntRange, Field: "tag_count_copyright"},
	CharTags:     {Name: "chartags", Grammar: IntRange, Field: "tag_count_character"},
	SpecTags:     {Name: "spectags", Grammar: IntRange, Field: "tag_count_species"},
	InvTags:      {Name: "invtags", Grammar: IntRange, Field: "tag_count_invalid"},
	MetaTags:     {Name: "metatags", Grammar: IntRange, Field: "tag_count_meta"},
	LoreTags:     {Name: "loretags", Grammar: IntRange, Field: "tag_count_lore"},
	Duration:     {Name: "duration", Grammar: FloatRange, Field: "duration"},
	MPixels:      {Name: "mpixels", Grammar: FudgedFloat, Field: "mpixels"},
	Ratio:        {Name: "ratio", Grammar: RatioRange, Field: "aspect_ratio"},
	Filesize:     {Name: "filesize", Grammar: FudgedFilesize, Field: "file_size"},
	Date:         {Name: "date", Grammar: DateRange, Field: "created_at"},
	Age:          {Name: "age", Grammar: AgeRange, Field: "created_at"},

	User:        {Name: "user", Grammar: UserRef, Field: "uploader"},
	UserID:      {Name: "user_id", Grammar: IntRange, Field: "uploader"},
	Approver:    {Name: "approver", Grammar: UserRef, Field: "approver", AnyNone: true},
	Commenter:   {Name: "commenter", Aliases: []string{"comm"}, Grammar: UserRef, Field: "commenters", AnyNone: true},
	Noter:       {Name: "noter", Grammar: UserRef, Field: "noters", AnyNone: true},
	NoteUpdater: {Name: "noteupdater", Grammar: UserRef, Field: "note_updaters"},
	Fav:         {Name: "fav", Aliases: []string{"favoritedby"}, Grammar: UserRef, Field: "faves"},
	DeletedBy:   {Name: "deletedby", Grammar: UserRef, Field: "deleter"},
	Upvote:      {Name: "upvote", Aliases: []string{"votedup"}, Grammar: UserRef, Field: "upvotes"},
	Downvote:    {Name: "downvote", Aliases: []string{"voteddown"}, Grammar: UserRef, Field: "downvotes"},
	Voted:       {Name: "voted", Grammar: UserRef},
	Pool:        {Name: "pool", Grammar: PoolRef, Field: "pools", AnyNone: true},
	Set:         {Name: "set", Grammar: SetRef, Field: "sets"},
	Parent:      {Name: "parent", Grammar: PostRef, Field: "parent", AnyNone: true},

	Rating:      {Name: "rating", Grammar: Enum, Field: "rating", Free: true},
	Filetype:    {Name: "filetype", Aliases: []string{"type"}, Grammar: Term, Field: "file_ext"},
	Source:      {Name: "source", Grammar: Wildcard, Field: "source", AnyNone: true},
	Description: {Name: "description", Grammar: Phrase, Field: "description"},
	Note:        {Name: "note", Grammar: Phrase, Field: "notes"},
	DelReason:   {Name: "delreason", Grammar: Wildcard, Field: "del_reason"},
	MD5:         {Name: "md5", Grammar: List, Field: "md5"},
	Child:       {Name: "child", Grammar: Presence, Field: "children"},
	Status:      {Name: "status", Grammar: Enum},
	Locked:      {Name: "locked", Grammar: Enum},

	HasSource:           {Name: "hassource", Grammar: Boolean, Field: "source", Exists: true},
	HasDescription:      {Name: "hasdescription", Grammar: Boolean, Field: "description", Exists: true},
	IsParent:            {Name: "isparent", Grammar: Boolean, Field: "has_children"},
	IsChild:             {Name: "ischild", Grammar: Boolean, Field: "parent", Exists: true},
	InPool:              {Name: "inpool", Grammar: Boolean, Field: "pools", Exists: true},
	PendingReplacements: {Name: "pending_replacements", Grammar: Boolean, Field: "has_pending_replacements"},
	ArtVerified:         {Name: "artverified", Grammar: Boolean, Field: "artverified"},
	RatingLocked:        {Name: "ratinglocked", Grammar: Boolean, Field: "rating_locked"},
	NoteLocked:          {Name: "notelocked", Grammar: Boolean, Field: "note_locked"},
	StatusLocked:        {Name: "statuslocked", Grammar: Boolean, Field: "status_locked"},

	Order:    {Name: "order", Grammar: Directive},
	Limit:    {Name: "limit", Grammar: Directive, Free: true},
	RandSeed: {Name: "randseed", Grammar: Directive},
}

var byName = func() map[string]Key {
	m := map[string]Key{}
	for k, s := range specs {
		m[s.Name] = k
		for _, alias := range s.Aliases {
			m[alias] = k
		}
	}
	return m
}()

// Lookup finds a key by name, case insensitively.
func Lookup(name string) (Key, bool) {
	k, found := byName[strings.ToLower(name)]
	return k, found
}

// Keys returns every recognised key sorted by name.
func Keys() []Key {
	keys := make([]Key, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return specs[keys[i]].Name < specs[keys[j]].Name
	})
	return keys
}

// Spec returns the description of the key.
func (k Key) Spec() Spec {
	return specs[k]
}

// String is the canonical name of the key.
func (k Key) String() string {
	if s, found := specs[k]; found {
		return s.Name
	}
	return "unknown"
}

// Grammar is the value grammar of the key.
func (k Key) Grammar() Grammar { return specs[k].Grammar }

// Field is the index field of the key.
func (k Key) Field() string { return specs[k].Field }

// Free reports whether the key is exempt from the tag quota.
func (k Key) Free() bool { return specs[k].Free }

// IsDirective reports whether the key controls the search rather than filtering it.
func (k Key) IsDirective() bool { return specs[k].Grammar == Directive }
