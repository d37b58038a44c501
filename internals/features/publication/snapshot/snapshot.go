package snapshot

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
)

type Kind string

const (
	KindMap      Kind = "map"
	KindBuilding Kind = "building"
	KindEmployee Kind = "employee"
	KindRoom     Kind = "room"
)

func (k Kind) Valid() bool {
	switch k {
	case KindMap, KindBuilding, KindEmployee, KindRoom:
		return true
	}
	return false
}

// Whitelists of captured fields, keyed by column/json name.
// id, created_at, updated_at and published_at are never captured.
var (
	MapFields = []string{"name", "image_path", "width", "height", "is_active"}

	BuildingFields = []string{
		"building_name", "description", "services", "image_path", "modal_image_path",
		"x_coordinate", "y_coordinate", "width", "height", "is_active",
		"map_id", "latitude", "longitude",
	}

	EmployeeFields = []string{
		"employee_name", "position", "department", "email", "contact_number",
		"employee_image", "building_id",
	}

	RoomFields = []string{"name", "description", "panorama_image_path", "thumbnail_path", "building_id"}

	embeddedEmployeeFields = append([]string{"id"}, EmployeeFields...)

	// fields compared when diffing a building's employee layer
	employeeCompareFields = []string{
		"employee_name", "position", "department", "email", "contact_number", "employee_image",
	}
)

// ChildEmployees is the relation name under which a building snapshot embeds employees.
const ChildEmployees = "employees"

var childRelations = map[string]struct{}{ChildEmployees: {}}

func FieldsOf(k Kind) []string {
	switch k {
	case KindMap:
		return MapFields
	case KindBuilding:
		return BuildingFields
	case KindEmployee:
		return EmployeeFields
	case KindRoom:
		return RoomFields
	}
	return nil
}

// Snapshot is the frozen, whitelisted state of an entity at publish time.
// Children holds denormalised child snapshots by relation name; each child
// keeps its own "id". Stored flat: fields and relations side by side.
type Snapshot struct {
	Fields   map[string]any
	Children map[string][]map[string]any
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+len(s.Children))
	for k, v := range s.Fields {
		out[k] = v
	}
	for rel, items := range s.Children {
		if items == nil {
			items = []map[string]any{}
		}
		out[rel] = items
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Fields = make(map[string]any, len(raw))
	s.Children = nil
	for k, v := range raw {
		if _, isRel := childRelations[k]; isRel {
			if s.Children == nil {
				s.Children = map[string][]map[string]any{}
			}
			s.Children[k] = toObjects(v)
			continue
		}
		s.Fields[k] = v
	}
	return nil
}

func (s *Snapshot) HasChild(rel string) bool {
	if s == nil || s.Children == nil {
		return false
	}
	_, ok := s.Children[rel]
	return ok
}

func toObjects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Encode turns a snapshot into a jsonb value.
func Encode(s Snapshot) (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return datatypes.JSON(b), nil
}

// Decode parses a stored snapshot. It returns nil for an absent snapshot.
func Decode(raw datatypes.JSON) (*Snapshot, error) {
	str := strings.TrimSpace(string(raw))
	if str == "" || str == "null" || str == "{}" {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &s, nil
}

/* =========================
   Projection
   ========================= */

// project serialises v through its json tags and keeps only fields.
// Values come out JSON-normalised (float64 numbers, []any, nil).
func project(v any, fields []string) map[string]any {
	full := toMap(v)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f] = full[f]
	}
	return out
}

func toMap(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

/* =========================
   Capture
   ========================= */

func CaptureMap(m mapModel.MapModel) Snapshot {
	return Snapshot{Fields: project(m, MapFields)}
}

// CaptureBuilding embeds the given employees as they are right now.
func CaptureBuilding(b buildingModel.BuildingModel, employees []employeeModel.EmployeeModel) Snapshot {
	items := make([]map[string]any, 0, len(employees))
	for _, e := range sortEmployees(employees) {
		item := project(e, embeddedEmployeeFields)
		item["employee_image"] = employeeModel.ImageOrDefault(e.EmployeeImage)
		items = append(items, item)
	}
	return Snapshot{
		Fields:   project(b, BuildingFields),
		Children: map[string][]map[string]any{ChildEmployees: items},
	}
}

func CaptureEmployee(e employeeModel.EmployeeModel) Snapshot {
	return Snapshot{Fields: project(e, EmployeeFields)}
}

func CaptureRoom(r roomModel.RoomModel) Snapshot {
	return Snapshot{Fields: project(r, RoomFields)}
}

/* =========================
   Apply / Reconstruct
   ========================= */

// Apply writes the snapshot's whitelisted fields onto target. Fields missing
// from the snapshot are left as they are.
func Apply[T any](target *T, s *Snapshot, fields []string) error {
	if s == nil {
		return nil
	}
	subset := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := s.Fields[f]; ok {
			subset[f] = v
		}
	}
	b, err := json.Marshal(subset)
	if err != nil {
		return errors.Wrap(err, "apply snapshot")
	}
	return errors.Wrap(json.Unmarshal(b, target), "apply snapshot")
}

// reconstruct copies live, then overlays the snapshot. Identity and
// timestamps always stay those of the live row.
func reconstruct[T any](s *Snapshot, live T, fields []string) (T, error) {
	view := live
	if err := Apply(&view, s, fields); err != nil {
		return live, err
	}
	return view, nil
}

func ReconstructMap(s *Snapshot, live mapModel.MapModel) (mapModel.MapModel, error) {
	v, err := reconstruct(s, live, MapFields)
	v.PublishedData = nil
	v.LayoutSnapshot = nil
	return v, err
}

func ReconstructEmployee(s *Snapshot, live employeeModel.EmployeeModel) (employeeModel.EmployeeModel, error) {
	v, err := reconstruct(s, live, EmployeeFields)
	v.PublishedData = nil
	v.EmployeeImage = employeeModel.ImageOrDefault(v.EmployeeImage)
	return v, err
}

func ReconstructRoom(s *Snapshot, live roomModel.RoomModel) (roomModel.RoomModel, error) {
	v, err := reconstruct(s, live, RoomFields)
	v.PublishedData = nil
	return v, err
}

// EmbeddedEmployee is one employee frozen inside a building snapshot.
type EmbeddedEmployee struct {
	ID            uint    `json:"id"`
	EmployeeName  string  `json:"employee_name"`
	Position      *string `json:"position"`
	Department    *string `json:"department"`
	Email         *string `json:"email"`
	ContactNumber *string `json:"contact_number"`
	EmployeeImage string  `json:"employee_image"`
	BuildingID    uint    `json:"building_id"`
}

// PublishedBuilding is the public view of a building.
type PublishedBuilding struct {
	buildingModel.BuildingModel
	Employees []EmbeddedEmployee `json:"employees"`
}

// ReconstructBuilding overlays the snapshot on the live row. Employees come
// from the embedded array; an old snapshot without one falls back to live.
func ReconstructBuilding(s *Snapshot, live buildingModel.BuildingModel, liveEmployees []employeeModel.EmployeeModel) (PublishedBuilding, error) {
	v, err := reconstruct(s, live, BuildingFields)
	v.PublishedData = nil
	out := PublishedBuilding{BuildingModel: v}
	if err != nil {
		return out, err
	}
	if s.HasChild(ChildEmployees) {
		out.Employees = EmbeddedEmployees(s)
	} else {
		out.Employees = EmbeddedEmployees(&Snapshot{Children: CaptureBuilding(live, liveEmployees).Children})
	}
	return out, nil
}

// EmbeddedEmployees decodes a building snapshot's employees, substituting
// the default image for empty ones.
func EmbeddedEmployees(s *Snapshot) []EmbeddedEmployee {
	if s == nil || s.Children == nil {
		return []EmbeddedEmployee{}
	}
	items := s.Children[ChildEmployees]
	out := make([]EmbeddedEmployee, 0, len(items))
	for _, it := range items {
		var e EmbeddedEmployee
		b, err := json.Marshal(it)
		if err != nil || json.Unmarshal(b, &e) != nil {
			continue
		}
		e.EmployeeImage = employeeModel.ImageOrDefault(e.EmployeeImage)
		out = append(out, e)
	}
	return out
}

/* =========================
   Comparison
   ========================= */

// FieldsDiffer reports whether current differs from the stored snapshot on
// any whitelisted field the snapshot carries. Fields absent from an older
// snapshot are not compared.
func FieldsDiffer(stored *Snapshot, current Snapshot, fields []string) bool {
	if stored == nil {
		return true
	}
	for _, f := range fields {
		sv, ok := stored.Fields[f]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(normalize(sv), normalize(current.Fields[f])) {
			return true
		}
	}
	return false
}

// EmployeesDiffer compares the employee layer of a building snapshot with
// the live employees, ignoring ids, order and volatile fields.
func EmployeesDiffer(stored *Snapshot, live []employeeModel.EmployeeModel) bool {
	var storedItems []map[string]any
	if stored != nil && stored.Children != nil {
		storedItems = stored.Children[ChildEmployees]
	}
	liveItems := make([]map[string]any, 0, len(live))
	for _, e := range live {
		liveItems = append(liveItems, project(e, employeeCompareFields))
	}
	return !reflect.DeepEqual(normalizeEmployees(storedItems), normalizeEmployees(liveItems))
}

func normalizeEmployees(items []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		n := make(map[string]any, len(employeeCompareFields))
		for _, f := range employeeCompareFields {
			n[f] = emptyToNil(it[f])
		}
		img, _ := n["employee_image"].(string)
		n["employee_image"] = employeeModel.ImageOrDefault(img)
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return employeeSortKey(str(out[i]["employee_name"]), str(out[i]["email"])) <
			employeeSortKey(str(out[j]["employee_name"]), str(out[j]["email"]))
	})
	return out
}

var folder = cases.Fold()

func employeeSortKey(name, email string) string {
	return folder.String(norm.NFC.String(name + "|" + email))
}

func sortEmployees(in []employeeModel.EmployeeModel) []employeeModel.EmployeeModel {
	out := append([]employeeModel.EmployeeModel(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		ki := employeeSortKey(out[i].EmployeeName, deref(out[i].Email))
		kj := employeeSortKey(out[j].EmployeeName, deref(out[j].Email))
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func normalize(v any) any {
	v = emptyToNil(v)
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case float32:
		return float64(t)
	}
	return v
}

func emptyToNil(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

/* =========================
   Image references
   ========================= */

var imageFields = []string{"image_path", "modal_image_path", "employee_image", "panorama_image_path", "thumbnail_path"}

// ImageRefs lists the image references a snapshot points at, embedded
// children included. The default employee image is never listed.
func ImageRefs(s *Snapshot) []string {
	if s == nil {
		return nil
	}
	var out []string
	collect := func(m map[string]any) {
		for _, f := range imageFields {
			if ref := str(m[f]); ref != "" && ref != employeeModel.DefaultEmployeeImage {
				out = append(out, ref)
			}
		}
	}
	collect(s.Fields)
	for _, items := range s.Children {
		for _, it := range items {
			collect(it)
		}
	}
	return out
}
