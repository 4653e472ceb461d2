// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ifmgr

import (
	"net/http"
	"strconv"

	"github.com/unrolled/render"
)

const (
	// prefix used for REST urls of the interface manager.
	urlPrefix = "/ifmgr/"

	// interfacesURL is URL used to dump the state of all interfaces.
	// Optional argument "name" selects a single interface.
	interfacesURL = urlPrefix + "interfaces"
	nameArg       = "name"

	// resyncURL is URL used to request resync of all interfaces.
	resyncURL = urlPrefix + "resync"

	// deviceStatusURL is URL used to announce device reachability,
	// arguments "device" and "reachable" (true/false) are required.
	deviceStatusURL = urlPrefix + "device-status"
	deviceArg       = "device"
	reachableArg    = "reachable"
)

// errorString wraps string representation of an error that, unlike the original
// error, can be marshalled.
type errorString struct {
	Error string
}

// registerHandlers registers all supported REST APIs.
func (m *Manager) registerHandlers() {
	if m.HTTPHandlers == nil {
		m.Log.Warn("No http handler provided, skipping registration of ifmgr REST handlers")
		return
	}
	m.HTTPHandlers.RegisterHTTPHandler(interfacesURL, m.interfacesGetHandler, "GET")
	m.HTTPHandlers.RegisterHTTPHandler(resyncURL, m.resyncReqHandler, "POST")
	m.HTTPHandlers.RegisterHTTPHandler(deviceStatusURL, m.deviceStatusReqHandler, "POST")
}

// interfacesGetHandler is the GET handler for "interfaces" API.
func (m *Manager) interfacesGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		dump := m.reconciler.Dump()
		name := req.URL.Query().Get(nameArg)
		if name == "" {
			formatter.JSON(w, http.StatusOK, dump)
			return
		}
		for _, d := range dump {
			if d.State.Name == name {
				formatter.JSON(w, http.StatusOK, d)
				return
			}
		}
		formatter.JSON(w, http.StatusNotFound, errorString{"interface " + name + " is not known"})
	}
}

// resyncReqHandler is the POST handler for "resync" API.
func (m *Manager) resyncReqHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := m.reconciler.Resync().WaitContext(req.Context()); err != nil {
			formatter.JSON(w, http.StatusInternalServerError, errorString{err.Error()})
			return
		}
		formatter.Text(w, http.StatusOK, "resync done\n")
	}
}

// deviceStatusReqHandler is the POST handler for "device-status" API.
func (m *Manager) deviceStatusReqHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		args := req.URL.Query()
		device := args.Get(deviceArg)
		reachable, err := strconv.ParseBool(args.Get(reachableArg))
		if device == "" || err != nil {
			formatter.JSON(w, http.StatusBadRequest, errorString{"device and reachable (true/false) are required"})
			return
		}
		if err := m.OnDeviceStatus(device, reachable).WaitContext(req.Context()); err != nil {
			formatter.JSON(w, http.StatusInternalServerError, errorString{err.Error()})
			return
		}
		formatter.Text(w, http.StatusOK, "device status updated\n")
	}
}
