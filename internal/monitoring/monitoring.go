// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package monitoring exposes the run state of a simulation over HTTP:
// Prometheus metrics on /metrics and a JSON status on /status.
package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ClusterCockpit/cc-cosim/internal/model"
	"github.com/ClusterCockpit/cc-cosim/internal/task"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor owns the metric collectors and the HTTP server.
type Monitor struct {
	task  *task.Task
	model *model.Model

	simTime   prometheus.GaugeFunc
	syncSteps prometheus.CounterFunc
	rtFactor  *prometheus.GaugeVec

	server *http.Server
}

// Start registers the collectors and serves the endpoint on addr.
func Start(addr string, t *task.Task, m *model.Model) (*Monitor, error) {
	mon := &Monitor{task: t, model: m}

	reg := prometheus.NewRegistry()

	mon.simTime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cosim",
		Name:      "simulation_time_seconds",
		Help:      "Current synchronization time of the simulation.",
	}, t.Time)
	mon.syncSteps = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "cosim",
		Name:      "synchronization_steps_total",
		Help:      "Number of completed synchronization steps.",
	}, func() float64 { return float64(t.NumSteps()) })
	mon.rtFactor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cosim",
		Name:      "element_rt_factor",
		Help:      "Wall-clock over simulated time per element.",
	}, []string{"element"})

	reg.MustRegister(mon.simTime, mon.syncSteps, mon.rtFactor)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/status", mon.status).Methods(http.MethodGet)
	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler())

	mon.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		cclog.Infof("Monitoring endpoint listening at %s", addr)
		if err := mon.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("Monitoring endpoint failed: %s", err.Error())
		}
	}()

	return mon, nil
}

type elementStatus struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Time     float64 `json:"time"`
	NumSteps int64   `json:"numSteps"`
	RTFactor float64 `json:"rtFactor,omitempty"`
	Finished bool    `json:"finished"`
}

type runStatus struct {
	SimTime  float64         `json:"simTime"`
	NumSteps int64           `json:"numSteps"`
	Elements []elementStatus `json:"elements"`
}

func (mon *Monitor) status(rw http.ResponseWriter, r *http.Request) {
	st := runStatus{
		SimTime:  mon.task.Time(),
		NumSteps: mon.task.NumSteps(),
	}

	for _, comp := range mon.model.Components {
		rt := comp.RTData()
		st.Elements = append(st.Elements, elementStatus{
			Name:     comp.Name(),
			Type:     comp.TypeName(),
			Time:     comp.Time(),
			NumSteps: comp.NumSteps(),
			RTFactor: rt.TotalRTFactor,
			Finished: comp.FinishState() == schema.Finished,
		})
		mon.rtFactor.WithLabelValues(comp.Name()).Set(rt.TotalRTFactor)
	}

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(st); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}

// Stop shuts the endpoint down.
func (mon *Monitor) Stop() {
	if err := mon.server.Close(); err != nil {
		cclog.Warnf("Monitoring endpoint close: %s", err.Error())
	}
}
