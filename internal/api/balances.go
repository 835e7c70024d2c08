/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"delayed-pool-go/internal/models"
)

// poolState returns the pooled balance with retained fees and totals
func (s *Server) poolState(w http.ResponseWriter, r *http.Request) {
	state, err := s.pool.PoolState(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) performance(w http.ResponseWriter, r *http.Request) {
	counters, err := s.pool.Performance(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (s *Server) solvency(w http.ResponseWriter, r *http.Request) {
	report, err := s.pool.CheckSolvency(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := s.pool.History(r.Context(), offset, limit)
	if err != nil {
		writePoolError(w, err)
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) historyLength(w http.ResponseWriter, r *http.Request) {
	length, err := s.pool.HistoryLength(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.HistoryLengthResponse{Length: length})
}
