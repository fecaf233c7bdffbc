package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
)

// UnitInput holds the editable fields of a faculty or a cathedra. Only Name
// is required; zero optional fields are left out of the request.
type UnitInput struct {
	Name           string `validate:"required,max=255"`
	FoundedDate    time.Time
	SiteURL        string `validate:"omitempty,url"`
	AdditionalInfo string
}

func (in UnitInput) params() map[string]any {
	p := map[string]any{"name": in.Name}
	if !in.FoundedDate.IsZero() {
		p["foundedDate"] = models.Time{Time: in.FoundedDate}
	}
	if in.SiteURL != "" {
		p["siteUrl"] = in.SiteURL
	}
	if in.AdditionalInfo != "" {
		p["addittionalInfo"] = in.AdditionalInfo
	}
	return p
}

// CathedraInput adds the owning faculty to UnitInput.
type CathedraInput struct {
	UnitInput
	FacultyID int `validate:"gt=0"`
}

func (in CathedraInput) params() map[string]any {
	p := in.UnitInput.params()
	p["facultyId"] = in.FacultyID
	return p
}

// GroupInput holds the editable fields of a group.
type GroupInput struct {
	Name              string `validate:"required,max=255"`
	NumberOfSemesters int    `validate:"min=1,max=16"`
	CathedraID        int    `validate:"gt=0"`
}

func (in GroupInput) params() map[string]any {
	return map[string]any{
		"name":              in.Name,
		"numberOfSemesters": in.NumberOfSemesters,
		"cathedraId":        in.CathedraID,
	}
}

// LessonInput holds the editable fields of a lesson.
type LessonInput struct {
	Name      string `validate:"required,max=255"`
	TeacherID int    `validate:"gt=0"`
}

func (in LessonInput) params() map[string]any {
	return map[string]any{
		"name":      in.Name,
		"teacherId": in.TeacherID,
	}
}

func checkID(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: id %d", ErrInvalidInput, id)
	}
	return nil
}

// CreateFaculty creates a faculty.
func (a *API) CreateFaculty(ctx context.Context, in UnitInput) (models.Faculty, error) {
	if err := validateInput(in); err != nil {
		return models.Faculty{}, err
	}
	return mutate[models.Faculty](ctx, a, mutation{
		op: OpCreateFaculty, method: http.MethodPost, path: "/faculty", params: in.params(),
		kind: models.KindFaculty, action: events.ActionCreated,
	}, http.StatusCreated)
}

// EditFaculty replaces the fields of faculty id.
func (a *API) EditFaculty(ctx context.Context, id int, in UnitInput) (models.Faculty, error) {
	if err := checkID(id); err != nil {
		return models.Faculty{}, err
	}
	if err := validateInput(in); err != nil {
		return models.Faculty{}, err
	}
	return mutate[models.Faculty](ctx, a, mutation{
		op: OpEditFaculty, method: http.MethodPut, path: fmt.Sprintf("/faculty/%d", id), params: in.params(),
		kind: models.KindFaculty, action: events.ActionUpdated,
	}, http.StatusOK)
}

// DeleteFaculty deletes faculty id.
func (a *API) DeleteFaculty(ctx context.Context, id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	return a.remove(ctx, OpDeleteFaculty, models.KindFaculty, id)
}

// CreateCathedra creates a cathedra in in.FacultyID.
func (a *API) CreateCathedra(ctx context.Context, in CathedraInput) (models.Cathedra, error) {
	if err := validateInput(in); err != nil {
		return models.Cathedra{}, err
	}
	return mutate[models.Cathedra](ctx, a, mutation{
		op: OpCreateCathedra, method: http.MethodPost, path: "/cathedra", params: in.params(),
		kind: models.KindCathedra, action: events.ActionCreated, parentID: in.FacultyID,
	}, http.StatusCreated)
}

// EditCathedra replaces the fields of cathedra id.
func (a *API) EditCathedra(ctx context.Context, id int, in CathedraInput) (models.Cathedra, error) {
	if err := checkID(id); err != nil {
		return models.Cathedra{}, err
	}
	if err := validateInput(in); err != nil {
		return models.Cathedra{}, err
	}
	return mutate[models.Cathedra](ctx, a, mutation{
		op: OpEditCathedra, method: http.MethodPut, path: fmt.Sprintf("/cathedra/%d", id), params: in.params(),
		kind: models.KindCathedra, action: events.ActionUpdated, parentID: in.FacultyID,
	}, http.StatusOK)
}

// DeleteCathedra deletes cathedra id.
func (a *API) DeleteCathedra(ctx context.Context, id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	return a.remove(ctx, OpDeleteCathedra, models.KindCathedra, id)
}

// CreateGroup creates a group in in.CathedraID.
func (a *API) CreateGroup(ctx context.Context, in GroupInput) (models.Group, error) {
	if err := validateInput(in); err != nil {
		return models.Group{}, err
	}
	return mutate[models.Group](ctx, a, mutation{
		op: OpCreateGroup, method: http.MethodPost, path: "/group", params: in.params(),
		kind: models.KindGroup, action: events.ActionCreated, parentID: in.CathedraID,
	}, http.StatusCreated)
}

// EditGroup replaces the fields of group id.
func (a *API) EditGroup(ctx context.Context, id int, in GroupInput) (models.Group, error) {
	if err := checkID(id); err != nil {
		return models.Group{}, err
	}
	if err := validateInput(in); err != nil {
		return models.Group{}, err
	}
	return mutate[models.Group](ctx, a, mutation{
		op: OpEditGroup, method: http.MethodPut, path: fmt.Sprintf("/group/%d", id), params: in.params(),
		kind: models.KindGroup, action: events.ActionUpdated, parentID: in.CathedraID,
	}, http.StatusOK)
}

// DeleteGroup deletes group id.
func (a *API) DeleteGroup(ctx context.Context, id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	return a.remove(ctx, OpDeleteGroup, models.KindGroup, id)
}

// CreateLesson creates a lesson.
func (a *API) CreateLesson(ctx context.Context, in LessonInput) (models.Lesson, error) {
	if err := validateInput(in); err != nil {
		return models.Lesson{}, err
	}
	return mutate[models.Lesson](ctx, a, mutation{
		op: OpCreateLesson, method: http.MethodPost, path: "/lesson", params: in.params(),
		kind: models.KindLesson, action: events.ActionCreated,
	}, http.StatusCreated)
}

// EditLesson replaces the fields of lesson id.
func (a *API) EditLesson(ctx context.Context, id int, in LessonInput) (models.Lesson, error) {
	if err := checkID(id); err != nil {
		return models.Lesson{}, err
	}
	if err := validateInput(in); err != nil {
		return models.Lesson{}, err
	}
	return mutate[models.Lesson](ctx, a, mutation{
		op: OpEditLesson, method: http.MethodPut, path: fmt.Sprintf("/lesson/%d", id), params: in.params(),
		kind: models.KindLesson, action: events.ActionUpdated,
	}, http.StatusOK)
}

// DeleteLesson deletes lesson id.
func (a *API) DeleteLesson(ctx context.Context, id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	return a.remove(ctx, OpDeleteLesson, models.KindLesson, id)
}
