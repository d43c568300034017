package store

import (
	"reflect"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestSortedPairIgnoresArgumentOrder(t *testing.T) {
	want := []string{"usr_a", "usr_b"}
	if got := SortedPair("usr_b", "usr_a"); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := SortedPair("usr_a", "usr_b"); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func sampleProperties() []Property {
	return []Property{
		{ID: "p1", Title: "Sea view flat", City: "Mumbai", Locality: "Bandra", Status: StatusActive, DealType: DealSale, PropertyType: "Apartment", Price: 9000000, Beds: 2, ListedBy: "u-owner"},
		{ID: "p2", Title: "Garden villa", City: "Pune", Locality: "Baner", Status: StatusActive, DealType: DealRent, PropertyType: "Villa", Price: 45000, Beds: 4, ListedBy: "u-broker"},
		{ID: "p3", Title: "Studio near station", City: "Navi Mumbai", Locality: "Vashi", Status: StatusDraft, DealType: DealRent, PropertyType: "Apartment", Price: 18000, Beds: 1, ListedBy: "u-owner"},
		{ID: "p4", Title: "Penthouse", City: "Mumbai", Locality: "Worli", Status: StatusActive, DealType: DealSale, PropertyType: "Apartment", Price: 52000000, Beds: 5, ListedBy: "u-broker"},
	}
}

func matchingIDs(q PropertyQuery, items []Property) []string {
	ids := []string{}
	for _, item := range items {
		if q.Matches(item) {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func TestPropertyQueryMatches(t *testing.T) {
	items := sampleProperties()
	cases := []struct {
		name  string
		query PropertyQuery
		want  []string
	}{
		{name: "empty query matches everything", query: PropertyQuery{}, want: []string{"p1", "p2", "p3", "p4"}},
		{name: "status", query: PropertyQuery{Status: StatusActive}, want: []string{"p1", "p2", "p4"}},
		{name: "search hits title city or locality", query: PropertyQuery{Search: "BAN"}, want: []string{"p1", "p2"}},
		{name: "city is a case-insensitive substring", query: PropertyQuery{City: "mumbai"}, want: []string{"p1", "p3", "p4"}},
		{name: "price range is inclusive", query: PropertyQuery{MinPrice: floatPtr(45000), MaxPrice: floatPtr(9000000)}, want: []string{"p1", "p2"}},
		{name: "exact beds", query: PropertyQuery{Beds: intPtr(2)}, want: []string{"p1"}},
		{name: "min beds", query: PropertyQuery{MinBeds: intPtr(4)}, want: []string{"p2", "p4"}},
		{name: "listed by", query: PropertyQuery{RestrictListedBy: true, ListedBy: []string{"u-broker"}}, want: []string{"p2", "p4"}},
		{name: "empty listed by matches nothing", query: PropertyQuery{RestrictListedBy: true}, want: []string{}},
		{
			name: "search is AND-ed with the other constraints",
			query: PropertyQuery{
				Status:       StatusActive,
				Search:       "mumbai",
				DealType:     DealSale,
				PropertyType: "Apartment",
				MaxPrice:     floatPtr(10000000),
			},
			want: []string{"p1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matchingIDs(tc.query, items)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestBuildPropertyWhereEmpty(t *testing.T) {
	where, args := buildPropertyWhere(PropertyQuery{})
	if where != "" || len(args) != 0 {
		t.Fatalf("expected no clause, got %q %v", where, args)
	}
}

func TestBuildPropertyWhereSearchIsOneGroup(t *testing.T) {
	where, args := buildPropertyWhere(PropertyQuery{
		Status:   StatusActive,
		Search:   "50%_off",
		City:     "Pune",
		MinPrice: floatPtr(100),
		MinBeds:  intPtr(4),
	})

	want := "WHERE status = $1 AND (title ILIKE $2 OR city ILIKE $2 OR locality ILIKE $2) AND city ILIKE $3 AND price >= $4 AND beds >= $5"
	if where != want {
		t.Fatalf("unexpected where clause:\n got %s\nwant %s", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[1] != `%50\%\_off%` {
		t.Fatalf("expected escaped search pattern, got %v", args[1])
	}
	if args[2] != "%Pune%" {
		t.Fatalf("expected city substring pattern, got %v", args[2])
	}
}

func TestBuildPropertyWhereRestrictedToNobody(t *testing.T) {
	where, args := buildPropertyWhere(PropertyQuery{RestrictListedBy: true})
	if !strings.Contains(where, "listed_by = ANY($1)") {
		t.Fatalf("expected listed_by restriction, got %q", where)
	}
	ids, ok := args[0].([]string)
	if !ok || ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil id list, got %#v", args[0])
	}
}

func TestPropertyFilterShape(t *testing.T) {
	filter := propertyFilter(PropertyQuery{
		Status:           StatusActive,
		Search:           "a.b",
		City:             "Pune",
		DealType:         DealRent,
		MinPrice:         floatPtr(10),
		MaxPrice:         floatPtr(20),
		Beds:             intPtr(3),
		RestrictListedBy: true,
		ListedBy:         []string{"u1"},
	})

	if filter["status"] != StatusActive || filter["dealType"] != DealRent {
		t.Fatalf("unexpected equality constraints: %#v", filter)
	}
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 3 {
		t.Fatalf("expected three-way $or, got %#v", filter["$or"])
	}
	title := or[0].(bson.M)["title"].(bson.M)
	if title["$regex"] != `a\.b` || title["$options"] != "i" {
		t.Fatalf("expected quoted case-insensitive regex, got %#v", title)
	}
	price := filter["price"].(bson.M)
	if price["$gte"] != 10.0 || price["$lte"] != 20.0 {
		t.Fatalf("unexpected price range %#v", price)
	}
	if filter["beds"].(bson.M)["$eq"] != 3 {
		t.Fatalf("unexpected beds filter %#v", filter["beds"])
	}
	listedBy := filter["listedBy"].(bson.M)["$in"].([]string)
	if !reflect.DeepEqual(listedBy, []string{"u1"}) {
		t.Fatalf("unexpected listedBy filter %#v", listedBy)
	}
}

func TestPropertyFilterRestrictedToNobody(t *testing.T) {
	filter := propertyFilter(PropertyQuery{RestrictListedBy: true})
	ids := filter["listedBy"].(bson.M)["$in"].([]string)
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil $in list, got %#v", ids)
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	lowA, highA := PairKey("u2", "u1")
	lowB, highB := PairKey("u1", "u2")
	if lowA != lowB || highA != highB || lowA != "u1" {
		t.Fatalf("expected stable pair, got (%s,%s) and (%s,%s)", lowA, highA, lowB, highB)
	}
	if mongoPairKey("b", "a") != "a:b" {
		t.Fatalf("unexpected mongo pair key %q", mongoPairKey("b", "a"))
	}
}

func TestPropertyPatchApplyLeavesNilFieldsUntouched(t *testing.T) {
	title := "New title"
	base := Property{Title: "Old", City: "Pune", Images: []string{"/a.jpg"}}
	got := PropertyPatch{Title: &title}.Apply(base)
	if got.Title != "New title" || got.City != "Pune" || len(got.Images) != 1 {
		t.Fatalf("unexpected patched property %#v", got)
	}
}
