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

package main

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
)

type request struct {
	Method string
	Path   string
	Query  url.Values
}

type fakeAgent struct {
	sync.Mutex
	requests []request
}

func (fa *fakeAgent) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	fa.Lock()
	fa.requests = append(fa.requests, request{Method: req.Method, Path: req.URL.Path, Query: req.URL.Query()})
	fa.Unlock()

	switch {
	case req.URL.Path == "/ifmgr/interfaces" && req.URL.Query().Get("name") == "missing":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"Error":"interface missing not found"}`))
	case req.URL.Path == "/ifmgr/interfaces":
		w.Write([]byte(`[{"State":{"name":"eth0"}}]`))
	default:
		w.Write([]byte("ok\n"))
	}
}

// runCmd runs ifmgrctl against the fake agent.
func runCmd(t *testing.T, agent *fakeAgent, args ...string) (string, error) {
	srv := httptest.NewServer(agent)
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	Expect(err).ShouldNot(HaveOccurred())

	dir, err := ioutil.TempDir("", "ifmgrctl")
	Expect(err).ShouldNot(HaveOccurred())
	defer os.RemoveAll(dir)
	cfgFile := filepath.Join(dir, "http.conf")
	Expect(ioutil.WriteFile(cfgFile, []byte("port: \""+u.Port()+"\"\n"), 0644)).To(Succeed())

	out := &bytes.Buffer{}
	rootCmd := newRootCmd()
	rootCmd.SetOutput(out)
	rootCmd.SetArgs(append([]string{"--host", u.Hostname(), "--config", cfgFile}, args...))
	err = rootCmd.Execute()
	return out.String(), err
}

func TestInterfaces(t *testing.T) {
	RegisterTestingT(t)

	agent := &fakeAgent{}
	out, err := runCmd(t, agent, "interfaces")
	Expect(err).ShouldNot(HaveOccurred())
	Expect(out).To(ContainSubstring(`"name": "eth0"`))
	Expect(agent.requests).To(HaveLen(1))
	Expect(agent.requests[0].Method).To(Equal("GET"))
	Expect(agent.requests[0].Path).To(Equal("/ifmgr/interfaces"))

	_, err = runCmd(t, agent, "interfaces", "missing")
	Expect(err).To(HaveOccurred())
	Expect(err.Error()).To(ContainSubstring("interface missing not found"))
}

func TestDeviceStatus(t *testing.T) {
	RegisterTestingT(t)

	agent := &fakeAgent{}
	_, err := runCmd(t, agent, "device-status", "leaf1", "down")
	Expect(err).ShouldNot(HaveOccurred())
	Expect(agent.requests).To(HaveLen(1))
	Expect(agent.requests[0].Method).To(Equal("POST"))
	Expect(agent.requests[0].Path).To(Equal("/ifmgr/device-status"))
	Expect(agent.requests[0].Query.Get("device")).To(Equal("leaf1"))
	Expect(agent.requests[0].Query.Get("reachable")).To(Equal("false"))

	_, err = runCmd(t, agent, "device-status", "leaf1", "sideways")
	Expect(err).To(HaveOccurred())
	Expect(agent.requests).To(HaveLen(1))
}

func TestControllerCommands(t *testing.T) {
	RegisterTestingT(t)

	agent := &fakeAgent{}
	for _, args := range [][]string{{"queues"}, {"history"}, {"flush"}, {"resync"}} {
		out, err := runCmd(t, agent, args...)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(out).ToNot(BeEmpty())
	}
	Expect(agent.requests).To(Equal([]request{
		{Method: "GET", Path: "/controller/queues", Query: url.Values{}},
		{Method: "GET", Path: "/controller/batch-history", Query: url.Values{}},
		{Method: "POST", Path: "/controller/flush", Query: url.Values{}},
		{Method: "POST", Path: "/ifmgr/resync", Query: url.Values{}},
	}))
}

func TestHistoryFilter(t *testing.T) {
	RegisterTestingT(t)
	defer func() {
		historyClass, historyFailed, historyLast = "", false, 0
	}()

	agent := &fakeAgent{}
	_, err := runCmd(t, agent, "history", "--class", "counters", "--failed", "--last", "5")
	Expect(err).ShouldNot(HaveOccurred())
	Expect(agent.requests).To(Equal([]request{
		{Method: "GET", Path: "/controller/batch-history",
			Query: url.Values{"class": {"counters"}, "failed": {"true"}, "last": {"5"}}},
	}))
}

func TestBasicAuth(t *testing.T) {
	RegisterTestingT(t)

	client := &HTTPClient{Config: &HTTPClientConfig{Port: defaultPort, BasicAuth: "nocolon"}, http: http.DefaultClient}
	_, err := client.Get("localhost", "/controller/queues", nil)
	Expect(err).To(HaveOccurred())
	Expect(err.Error()).To(ContainSubstring("invalid format of basic auth"))

	client.Config.UseHTTPS = true
	Expect(client.createURL("leaf", "/ifmgr/interfaces", url.Values{"name": {"eth0"}})).
		To(Equal("https://leaf:9191/ifmgr/interfaces?name=eth0"))
}
