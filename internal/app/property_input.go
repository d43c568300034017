package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"estate/api/internal/store"
)

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings")
	}
	*l = cleanList(many)
	return nil
}

// propertyJSON is the JSON form of a listing write. Absent fields stay nil.
type propertyJSON struct {
	Title        *string     `json:"title"`
	Description  *string     `json:"description"`
	Price        *float64    `json:"price"`
	DealType     *string     `json:"dealType"`
	PropertyType *string     `json:"propertyType"`
	Beds         *int        `json:"beds"`
	Baths        *int        `json:"baths"`
	Area         *float64    `json:"area"`
	City         *string     `json:"city"`
	Locality     *string     `json:"locality"`
	Address      *string     `json:"address"`
	Pincode      *string     `json:"pincode"`
	Amenities    *stringList `json:"amenities"`
	Highlights   *stringList `json:"highlights"`
	Furnishing   *string     `json:"furnishing"`
	Status       *string     `json:"status"`
	Location     *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

func (in propertyJSON) patch() store.PropertyPatch {
	patch := store.PropertyPatch{
		Title:        trimmed(in.Title),
		Description:  trimmed(in.Description),
		Price:        in.Price,
		DealType:     trimmed(in.DealType),
		PropertyType: trimmed(in.PropertyType),
		Beds:         in.Beds,
		Baths:        in.Baths,
		Area:         in.Area,
		City:         trimmed(in.City),
		Locality:     trimmed(in.Locality),
		Address:      trimmed(in.Address),
		Pincode:      trimmed(in.Pincode),
		Furnishing:   nonBlank(trimmed(in.Furnishing)),
		Status:       nonBlank(trimmed(in.Status)),
	}
	if in.Amenities != nil {
		patch.Amenities = nonNilStrings(*in.Amenities)
	}
	if in.Highlights != nil {
		patch.Highlights = nonNilStrings(*in.Highlights)
	}
	if in.Location != nil {
		patch.Location = &store.Location{Lat: in.Location.Lat, Lng: in.Location.Lng}
	}
	return patch
}

// parsePropertyForm reads a multipart or urlencoded listing write. List fields
// may be sent repeated, with a [] suffix, or as one newline separated value.
func parsePropertyForm(form url.Values) (store.PropertyPatch, error) {
	var patch store.PropertyPatch
	var err error

	patch.Title = formString(form, "title")
	patch.Description = formString(form, "description")
	patch.DealType = formString(form, "dealType")
	patch.PropertyType = formString(form, "propertyType")
	patch.City = formString(form, "city")
	patch.Locality = formString(form, "locality")
	patch.Address = formString(form, "address")
	patch.Pincode = formString(form, "pincode")
	patch.Furnishing = nonBlank(formString(form, "furnishing"))
	patch.Status = nonBlank(formString(form, "status"))

	if patch.Price, err = formFloat(form, "price"); err != nil {
		return store.PropertyPatch{}, err
	}
	if patch.Area, err = formFloat(form, "area"); err != nil {
		return store.PropertyPatch{}, err
	}
	if patch.Beds, err = formInt(form, "beds"); err != nil {
		return store.PropertyPatch{}, err
	}
	if patch.Baths, err = formInt(form, "baths"); err != nil {
		return store.PropertyPatch{}, err
	}
	patch.Amenities = formList(form, "amenities")
	patch.Highlights = formList(form, "highlights")

	lat, err := formFloat(form, "lat")
	if err != nil {
		return store.PropertyPatch{}, err
	}
	lng, err := formFloat(form, "lng")
	if err != nil {
		return store.PropertyPatch{}, err
	}
	if lat != nil && lng != nil {
		patch.Location = &store.Location{Lat: *lat, Lng: *lng}
	}
	return patch, nil
}

func formString(form url.Values, key string) *string {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := strings.TrimSpace(values[0])
	return &value
}

func formFloat(form url.Values, key string) (*float64, error) {
	raw := formString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, validation(key+" must be a number", map[string]any{"field": key})
	}
	return &value, nil
}

func formInt(form url.Values, key string) (*int, error) {
	raw := formString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(*raw)
	if err != nil {
		return nil, validation(key+" must be a whole number", map[string]any{"field": key})
	}
	return &value, nil
}

func formList(form url.Values, key string) []string {
	values, ok := form[key]
	if !ok {
		values, ok = form[key+"[]"]
	}
	if !ok {
		return nil
	}
	if len(values) == 1 {
		return splitList(values[0])
	}
	return cleanList(values)
}

// splitList splits a single text value on newlines, dropping blank lines.
func splitList(value string) []string {
	return cleanList(strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n"))
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// nonBlank treats an empty optional value as absent.
func nonBlank(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}

// newProperty validates a create request. Images are checked by the caller.
func newProperty(patch store.PropertyPatch) (store.Property, error) {
	var missing []string
	requireText := func(name string, value *string) {
		if value == nil || *value == "" {
			missing = append(missing, name)
		}
	}
	requireText("title", patch.Title)
	requireText("description", patch.Description)
	requireText("dealType", patch.DealType)
	requireText("propertyType", patch.PropertyType)
	requireText("city", patch.City)
	requireText("locality", patch.Locality)
	requireText("address", patch.Address)
	requireText("pincode", patch.Pincode)
	if patch.Price == nil {
		missing = append(missing, "price")
	}
	if patch.Beds == nil {
		missing = append(missing, "beds")
	}
	if patch.Baths == nil {
		missing = append(missing, "baths")
	}
	if patch.Area == nil {
		missing = append(missing, "area")
	}
	if len(missing) > 0 {
		return store.Property{}, validation("Missing required fields: "+strings.Join(missing, ", "), map[string]any{"missing": missing})
	}
	if err := validatePatch(patch); err != nil {
		return store.Property{}, err
	}

	return patch.Apply(store.Property{
		Furnishing: "Unfurnished",
		Status:     store.StatusActive,
		Amenities:  []string{},
		Highlights: []string{},
	}), nil
}

// validatePatch checks enums and ranges of the fields present in patch.
func validatePatch(patch store.PropertyPatch) error {
	if err := oneOf("dealType", patch.DealType, store.DealTypes); err != nil {
		return err
	}
	if err := oneOf("propertyType", patch.PropertyType, store.PropertyTypes); err != nil {
		return err
	}
	if err := oneOf("furnishing", patch.Furnishing, store.Furnishings); err != nil {
		return err
	}
	if err := oneOf("status", patch.Status, store.Statuses); err != nil {
		return err
	}
	for name, value := range map[string]*string{"title": patch.Title, "city": patch.City, "locality": patch.Locality} {
		if value != nil && *value == "" {
			return validation(name+" cannot be empty", map[string]any{"field": name})
		}
	}
	if patch.Price != nil && *patch.Price < 0 {
		return validation("price cannot be negative", map[string]any{"field": "price"})
	}
	if patch.Area != nil && *patch.Area < 0 {
		return validation("area cannot be negative", map[string]any{"field": "area"})
	}
	if patch.Beds != nil && *patch.Beds < 0 {
		return validation("beds cannot be negative", map[string]any{"field": "beds"})
	}
	if patch.Baths != nil && *patch.Baths < 0 {
		return validation("baths cannot be negative", map[string]any{"field": "baths"})
	}
	return nil
}

func oneOf(name string, value *string, allowed []string) error {
	if value == nil || slices.Contains(allowed, *value) {
		return nil
	}
	return validation(fmt.Sprintf("%s must be one of %s", name, strings.Join(allowed, ", ")), map[string]any{"field": name})
}
