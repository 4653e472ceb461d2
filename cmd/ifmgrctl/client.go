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
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ligato/cn-infra/config"
	"github.com/pkg/errors"
)

const defaultPort = "9191"

// HTTPClient wraps http.Client with configured authorization and url base.
type HTTPClient struct {
	Config *HTTPClientConfig

	http *http.Client
}

// HTTPClientConfig is configuration for the http client.
type HTTPClientConfig struct {
	// Port the agent REST server listens on.
	Port string `json:"port"`
	// Basic authorization for the client, "user:pass".
	BasicAuth string `json:"basic-auth"`
	// If https or http should be used.
	UseHTTPS bool `json:"use-https"`
}

// CreateHTTPClient loads the client config from the given file, or from the file
// referenced by HTTP_CLIENT_CONFIG when no file is given.
func CreateHTTPClient(configFile string) (*HTTPClient, error) {
	if configFile == "" {
		configFile = os.Getenv("HTTP_CLIENT_CONFIG")
	}

	cfg := &HTTPClientConfig{Port: defaultPort}
	if configFile != "" {
		if err := config.ParseConfigFromYamlFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	return &HTTPClient{
		Config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (client *HTTPClient) createURL(host string, path string, args url.Values) string {
	scheme := "http"
	if client.Config.UseHTTPS {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     host + ":" + client.Config.Port,
		Path:     path,
		RawQuery: args.Encode(),
	}
	return u.String()
}

// Get sends GET request and returns the response body.
func (client *HTTPClient) Get(host string, path string, args url.Values) ([]byte, error) {
	return client.do("GET", client.createURL(host, path, args))
}

// Post sends POST request with empty body and returns the response body.
func (client *HTTPClient) Post(host string, path string, args url.Values) ([]byte, error) {
	return client.do("POST", client.createURL(host, path, args))
}

func (client *HTTPClient) do(method, url string) ([]byte, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	if len(client.Config.BasicAuth) > 0 {
		fields := strings.Split(client.Config.BasicAuth, ":")
		if len(fields) != 2 {
			return nil, errors.Errorf("invalid format of basic auth entry '%v' expected 'user:pass'",
				client.Config.BasicAuth)
		}
		req.SetBasicAuth(fields[0], fields[1])
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, url)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response of %s %s", method, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s %s: %s: %s", method, url, resp.Status, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts the message of an error reply ({"Error": "..."}).
func errorMessage(body []byte) string {
	reply := struct{ Error string }{}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Error != "" {
		return reply.Error
	}
	return strings.TrimSpace(string(body))
}

// prettyJSON re-indents JSON replies, other content is returned unchanged.
func prettyJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String() + "\n"
}
