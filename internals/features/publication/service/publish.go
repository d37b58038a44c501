package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/publication/snapshot"
	helper "campusmap_backend/internals/helpers"
	"campusmap_backend/internals/metrics"
)

// outcome is what one publish did inside a transaction. Side effects that
// must wait for commit (activity, image cleanup) are carried out later.
type outcome struct {
	kind   snapshot.Kind
	id     uint
	name   string
	result Result
	stale  []string
}

type Counts struct {
	Published int `json:"published"`
	Deleted   int `json:"deleted"`
}

type PublishAllResult struct {
	Maps      Counts `json:"maps"`
	Buildings Counts `json:"buildings"`
	Rooms     Counts `json:"rooms"`
	Employees Counts `json:"employees"`
}

func (r *PublishAllResult) counts(k snapshot.Kind) *Counts {
	switch k {
	case snapshot.KindMap:
		return &r.Maps
	case snapshot.KindBuilding:
		return &r.Buildings
	case snapshot.KindRoom:
		return &r.Rooms
	default:
		return &r.Employees
	}
}

func (r *PublishAllResult) add(o outcome) {
	c := r.counts(o.kind)
	if o.result == ResultDeleted {
		c.Deleted++
	} else {
		c.Published++
	}
}

func (r *PublishAllResult) Total() int {
	n := 0
	for _, c := range []Counts{r.Maps, r.Buildings, r.Rooms, r.Employees} {
		n += c.Published + c.Deleted
	}
	return n
}

/* =========================
   PublishOne
   ========================= */

// PublishOne publishes one entity. A pending deletion is finalised and
// reported as deleted; otherwise the snapshot and publication flags are
// written in one UPDATE.
func (s *PublicationService) PublishOne(ctx context.Context, kind snapshot.Kind, id uint, actor helper.Actor) (Result, error) {
	if !kind.Valid() {
		return "", helper.Invalid("unknown entity type %q", kind)
	}
	var o outcome
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = s.publishTx(tx, kind, id, actor, time.Now())
		return err
	})
	if err != nil {
		return "", err
	}
	s.afterPublish(ctx, actor, []outcome{o})
	return o.result, nil
}

func (s *PublicationService) publishTx(tx *gorm.DB, kind snapshot.Kind, id uint, actor helper.Actor, now time.Time) (outcome, error) {
	o := outcome{kind: kind, id: id, result: ResultUpdated}

	switch kind {
	case snapshot.KindMap:
		var m mapModel.MapModel
		if err := tx.First(&m, id).Error; err != nil {
			return o, helper.Storage(err, "load map")
		}
		o.name = m.Name
		if m.PendingDeletion {
			return s.finalizeTx(tx, o, actor)
		}
		return o, s.writeSnapshot(tx, &o, m.PublishedData, snapshot.CaptureMap(m), []string{m.ImagePath}, actor, now)

	case snapshot.KindBuilding:
		var b buildingModel.BuildingModel
		if err := tx.First(&b, id).Error; err != nil {
			return o, helper.Storage(err, "load building")
		}
		o.name = b.BuildingName
		if b.PendingDeletion {
			return s.finalizeTx(tx, o, actor)
		}
		emps, err := employeesByBuilding(tx, []uint{id})
		if err != nil {
			return o, err
		}
		live := []string{deref(b.ImagePath), deref(b.ModalImagePath)}
		for _, e := range emps[id] {
			live = append(live, e.EmployeeImage)
		}
		return o, s.writeSnapshot(tx, &o, b.PublishedData, snapshot.CaptureBuilding(b, emps[id]), live, actor, now)

	case snapshot.KindEmployee:
		var e employeeModel.EmployeeModel
		if err := tx.First(&e, id).Error; err != nil {
			return o, helper.Storage(err, "load employee")
		}
		o.name = e.EmployeeName
		return o, s.writeSnapshot(tx, &o, e.PublishedData, snapshot.CaptureEmployee(e), []string{e.EmployeeImage}, actor, now)

	case snapshot.KindRoom:
		var r roomModel.RoomModel
		if err := tx.First(&r, id).Error; err != nil {
			return o, helper.Storage(err, "load room")
		}
		o.name = r.Name
		if r.PendingDeletion {
			return s.finalizeTx(tx, o, actor)
		}
		live := []string{r.PanoramaImagePath, deref(r.ThumbnailPath)}
		return o, s.writeSnapshot(tx, &o, r.PublishedData, snapshot.CaptureRoom(r), live, actor, now)
	}
	return o, helper.Invalid("unknown entity type %q", kind)
}

func (s *PublicationService) finalizeTx(tx *gorm.DB, o outcome, actor helper.Actor) (outcome, error) {
	if s.Trash == nil {
		return o, errors.New("trash service not configured")
	}
	if _, err := s.Trash.Finalize(tx, itemTypeOf(o.kind), o.id, actor); err != nil {
		return o, err
	}
	o.result = ResultDeleted
	return o, nil
}

func (s *PublicationService) writeSnapshot(tx *gorm.DB, o *outcome, old datatypes.JSON, snap snapshot.Snapshot, live []string, actor helper.Actor, now time.Time) error {
	raw, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	by := actor.DisplayName()
	if err := tx.Model(modelOf(o.kind)).Where("id = ?", o.id).Updates(map[string]any{
		"published_data": raw,
		"is_published":   true,
		"published_at":   now,
		"published_by":   by,
	}).Error; err != nil {
		return helper.Storage(err, "write snapshot")
	}
	o.stale = staleRefs(old, &snap, live)
	return nil
}

// staleRefs lists images the previous snapshot used that neither the new
// snapshot nor the live row uses any more.
func staleRefs(old datatypes.JSON, next *snapshot.Snapshot, live []string) []string {
	prev, err := snapshot.Decode(old)
	if err != nil || prev == nil {
		return nil
	}
	keep := map[string]struct{}{}
	for _, r := range snapshot.ImageRefs(next) {
		keep[r] = struct{}{}
	}
	for _, r := range live {
		keep[r] = struct{}{}
	}
	var out []string
	for _, r := range snapshot.ImageRefs(prev) {
		if _, ok := keep[r]; !ok && r != employeeModel.DefaultEmployeeImage {
			out = append(out, r)
		}
	}
	return out
}

// afterPublish runs the post-commit side effects of a batch.
func (s *PublicationService) afterPublish(ctx context.Context, actor helper.Actor, outs []outcome) {
	var stale []string
	for _, o := range outs {
		id := o.id
		action := activityService.PublishedAction(string(o.kind))
		if o.result == ResultDeleted {
			action = activityService.ActionPublishedDeletion
		}
		s.Recorder.Record(ctx, actor, activityService.Entry{
			Action:     action,
			TargetType: string(o.kind),
			TargetID:   &id,
			TargetName: o.name,
		})
		metrics.PublicationEntitiesTotal.WithLabelValues(string(o.kind), string(o.result)).Inc()
		stale = append(stale, o.stale...)
	}
	if len(stale) > 0 && s.Trash != nil {
		s.Trash.DeleteImages(ctx, stale)
	}
	if len(outs) > 0 {
		s.Cache.InvalidatePublic(ctx)
	}
}

/* =========================
   PublishAll
   ========================= */

// PublishAll publishes every dirty entity, maps first, then buildings of
// the active map, rooms and employees, in one transaction. Any failure
// rolls the whole batch back.
func (s *PublicationService) PublishAll(ctx context.Context, actor helper.Actor) (*PublishAllResult, error) {
	return s.publishKinds(ctx, publishOrder, actor)
}

// PublishAllOf publishes every dirty entity of one kind in one transaction.
func (s *PublicationService) PublishAllOf(ctx context.Context, kind snapshot.Kind, actor helper.Actor) (*PublishAllResult, error) {
	if !kind.Valid() {
		return nil, helper.Invalid("unknown entity type %q", kind)
	}
	return s.publishKinds(ctx, []snapshot.Kind{kind}, actor)
}

func (s *PublicationService) publishKinds(ctx context.Context, kinds []snapshot.Kind, actor helper.Actor) (*PublishAllResult, error) {
	start := time.Now()
	res := &PublishAllResult{}
	var outs []outcome

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, k := range kinds {
			// listed per kind so earlier finalisations are already visible
			items, err := listDirty(tx, k, ListOptions{})
			if err != nil {
				return err
			}
			for _, it := range items {
				o, err := s.publishTx(tx, k, it.ID, actor, now)
				if err != nil {
					return errors.Wrapf(err, "publish %s %d", k, it.ID)
				}
				outs = append(outs, o)
			}
		}
		return nil
	})
	metrics.PublishAllDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.WithError(err).Error("❌ publish all rolled back")
		return nil, helper.Storage(err, "publish all")
	}

	for _, o := range outs {
		res.add(o)
	}
	s.afterPublish(ctx, actor, outs)
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionPublished,
		TargetType: "system",
		TargetName: "publish all",
		Details: map[string]any{
			"maps":      res.Maps,
			"buildings": res.Buildings,
			"rooms":     res.Rooms,
			"employees": res.Employees,
			"total":     res.Total(),
		},
	})
	return res, nil
}

/* =========================
   Revert / Unpublish
   ========================= */

// RevertOne resets the live row to its snapshot and marks it published. A
// row that was never published is deleted outright.
func (s *PublicationService) RevertOne(ctx context.Context, kind snapshot.Kind, id uint, actor helper.Actor) (Result, error) {
	if !kind.Valid() {
		return "", helper.Invalid("unknown entity type %q", kind)
	}
	var (
		res   Result
		name  string
		stale []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, name, stale, err = revertTx(tx, kind, id)
		return err
	})
	if err != nil {
		return "", err
	}

	action := activityService.ActionReverted
	if res == ResultDeleted {
		action = activityService.ActionDeleted
	}
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     action,
		TargetType: string(kind),
		TargetID:   &id,
		TargetName: name,
	})
	metrics.PublicationEntitiesTotal.WithLabelValues(string(kind), metrics.ResultReverted).Inc()
	if len(stale) > 0 && s.Trash != nil {
		s.Trash.DeleteImages(ctx, stale)
	}
	s.Cache.InvalidatePublic(ctx)
	return res, nil
}

// Unpublish marks the entity unpublished. The snapshot and published_at
// stay so the public app keeps its last good state.
func (s *PublicationService) Unpublish(ctx context.Context, kind snapshot.Kind, id uint, actor helper.Actor) error {
	if !kind.Valid() {
		return helper.Invalid("unknown entity type %q", kind)
	}
	res := s.DB.WithContext(ctx).Model(modelOf(kind)).Where("id = ?", id).Update("is_published", false)
	if res.Error != nil {
		return helper.Storage(res.Error, "unpublish")
	}
	if res.RowsAffected == 0 {
		return helper.NotFound(string(kind), id)
	}
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionUnpublished,
		TargetType: string(kind),
		TargetID:   &id,
	})
	s.Cache.InvalidatePublic(ctx)
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
