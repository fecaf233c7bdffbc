package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/pagination"
)

// decodeList returns a decoder for list pages whose items sit under key next
// to the page and totalPages fields.
func decodeList[T any](key string) client.Decoder[pagination.Page[T]] {
	return func(status int, body json.RawMessage) (pagination.Page[T], error) {
		var page pagination.Page[T]
		if status != http.StatusOK {
			return page, fmt.Errorf("list %s: status %d", key, status)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return page, fmt.Errorf("list %s: %w", key, err)
		}
		raw, ok := fields[key]
		if !ok {
			return page, fmt.Errorf("list %s: missing items", key)
		}
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return page, fmt.Errorf("list %s: %w", key, err)
		}
		if err := json.Unmarshal(body, &page.Pagination); err != nil {
			return page, fmt.Errorf("list %s: %w", key, err)
		}
		if page.Items == nil {
			page.Items = []T{}
		}
		return page, nil
	}
}

func loadList[T any](ctx context.Context, a *API, op client.Operation, path, key string, params map[string]any) (pagination.Page[T], error) {
	req := client.Request{Method: http.MethodGet, Path: path, Params: params}
	return client.Call(ctx, a.client, op, req, decodeList[T](key))
}

// Faculties loads one page of the faculties list.
func (a *API) Faculties(ctx context.Context, page int) (pagination.Page[models.Faculty], error) {
	return loadList[models.Faculty](ctx, a, OpLoadFacultiesList, "/faculty/list", "faculties",
		map[string]any{"page": page})
}

// Cathedras loads one page of the cathedras of a faculty. A facultyID of 0
// lists the cathedras of every faculty.
func (a *API) Cathedras(ctx context.Context, facultyID, page int) (pagination.Page[models.Cathedra], error) {
	params := map[string]any{"page": page}
	if facultyID > 0 {
		params["facultyId"] = facultyID
	}
	return loadList[models.Cathedra](ctx, a, OpLoadCathedrasList, "/cathedra/list", "cathedras", params)
}

// Groups loads one page of the groups of a cathedra.
func (a *API) Groups(ctx context.Context, cathedraID, page int) (pagination.Page[models.Group], error) {
	return loadList[models.Group](ctx, a, OpLoadGroupsList, "/group/list", "groups",
		map[string]any{"page": page, "cathedraId": cathedraID})
}

// Lessons loads one page of the lessons list.
func (a *API) Lessons(ctx context.Context, page int) (pagination.Page[models.Lesson], error) {
	return loadList[models.Lesson](ctx, a, OpLoadLessonsList, "/lesson/list", "lessons",
		map[string]any{"page": page})
}

// BalanceHistory loads one page of the signed-in student's balance changes.
func (a *API) BalanceHistory(ctx context.Context, page int) (pagination.Page[models.Payment], error) {
	return loadList[models.Payment](ctx, a, OpLoadBalanceHistory, "/balance-history", "changes",
		map[string]any{"page": page})
}

// FacultiesSource is the data source of the faculties screen.
func (a *API) FacultiesSource() pagination.DataSource[models.Faculty] {
	return pagination.DataSourceFunc[models.Faculty](a.Faculties)
}

// CathedrasSource is the data source of the cathedras of facultyID, or of all
// cathedras when facultyID is 0.
func (a *API) CathedrasSource(facultyID int) pagination.DataSource[models.Cathedra] {
	return pagination.DataSourceFunc[models.Cathedra](func(ctx context.Context, page int) (pagination.Page[models.Cathedra], error) {
		return a.Cathedras(ctx, facultyID, page)
	})
}

// GroupsSource is the data source of the groups of cathedraID.
func (a *API) GroupsSource(cathedraID int) pagination.DataSource[models.Group] {
	return pagination.DataSourceFunc[models.Group](func(ctx context.Context, page int) (pagination.Page[models.Group], error) {
		return a.Groups(ctx, cathedraID, page)
	})
}

// LessonsSource is the data source of the lessons screen.
func (a *API) LessonsSource() pagination.DataSource[models.Lesson] {
	return pagination.DataSourceFunc[models.Lesson](a.Lessons)
}

// BalanceHistorySource is the data source of the payment history screen.
func (a *API) BalanceHistorySource() pagination.DataSource[models.Payment] {
	return pagination.DataSourceFunc[models.Payment](a.BalanceHistory)
}
