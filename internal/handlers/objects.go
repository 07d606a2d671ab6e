package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/client"
	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/resource"
)

const maxDepth = 2

type envelope struct {
	Data []resource.Row `json:"data"`
	Meta map[string]any `json:"meta"`
}

func (r *Router) concrete(w http.ResponseWriter, req *http.Request) (*backend.Concrete, bool) {
	tag := mux.Vars(req)["tag"]
	res, err := resource.Get(tag)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return nil, false
	}
	c, err := r.backend.Concrete(res)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return nil, false
	}
	return c, true
}

func queryInt(req *http.Request, name string) (int64, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.NotValidf("%s %q", name, v)
	}
	return n, nil
}

func depthOf(req *http.Request) (int, error) {
	d, err := queryInt(req, "depth")
	if err != nil {
		return 0, err
	}
	if d < 0 {
		d = 0
	}
	if d > maxDepth {
		d = maxDepth
	}
	return int(d), nil
}

func (r *Router) render(w http.ResponseWriter, req *http.Request, objs []backend.Object, depth int, since int64) {
	data := make([]resource.Row, 0, len(objs))
	for _, obj := range objs {
		row, err := client.AsRow(req.Context(), r.backend, obj, depth)
		if err != nil {
			logging.Error().Err(err).Int64("pk", obj.GetID()).Msg("Failed to render object")
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if since > 1 && updatedBefore(row, since) {
			continue
		}
		data = append(data, row)
	}
	respondJSON(w, http.StatusOK, envelope{Data: data, Meta: map[string]any{}})
}

func updatedBefore(row resource.Row, since int64) bool {
	s, _ := row["updated"].(string)
	t, err := time.Parse(time.RFC3339, s)
	return err == nil && t.Unix() < since
}

// listObjects serves GET /api/{tag} with the id, since and depth filters.
func (r *Router) listObjects(w http.ResponseWriter, req *http.Request) {
	c, ok := r.concrete(w, req)
	if !ok {
		return
	}
	id, err := queryInt(req, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := queryInt(req, "since")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	depth, err := depthOf(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ids []int64
	if id != 0 {
		ids = append(ids, id)
	}
	objs, err := r.backend.Objects(req.Context(), c, ids...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.render(w, req, objs, depth, since)
}

// getObject serves GET /api/{tag}/{id}.
func (r *Router) getObject(w http.ResponseWriter, req *http.Request) {
	c, ok := r.concrete(w, req)
	if !ok {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	depth, err := depthOf(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	obj, err := r.backend.Object(req.Context(), c, id)
	if errors.Is(err, errors.NotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.render(w, req, []backend.Object{obj}, depth, 0)
}

// cacheFile serves GET /{tag}-0.json: every object at depth 0.
func (r *Router) cacheFile(w http.ResponseWriter, req *http.Request) {
	c, ok := r.concrete(w, req)
	if !ok {
		return
	}
	objs, err := r.backend.Objects(req.Context(), c)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.render(w, req, objs, 0, 0)
}
