package rest

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/larch"
	"github.com/mongodb/amboy"
)

////////////////////////////////////////////////////////////////////////
//
// GET /status

type StatusResponse struct {
	Revision string            `json:"revision"`
	Storage  larch.StorageType `json:"storage"`
	Queue    amboy.QueueStats  `json:"queue"`
}

func (s *Service) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := &StatusResponse{
		Revision: larch.BuildRevision,
		Storage:  s.Environment.GetConf().Storage.Type,
		Queue:    s.queue.Stats(r.Context()),
	}

	gimlet.WriteJSON(w, resp)
}
