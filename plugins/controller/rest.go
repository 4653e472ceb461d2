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

package controller

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/unrolled/render"

	"github.com/contiv/ifmgr/plugins/controller/api"
)

const (
	// prefix used for REST urls of the controller.
	urlPrefix = "/controller/"

	// batchHistoryURL is URL used to obtain the history of committed batches.
	batchHistoryURL = urlPrefix + "batch-history"

	// batch-history arguments, all optional and combined with AND:
	//   * seq-num (single record, 404 if not recorded)
	//   * since, until (Unix timestamps)
	//   * class (records|counters)
	//   * failed (true to list failed batches only)
	//   * last (max. number of latest matching records)
	seqNumArg = "seq-num"
	sinceArg  = "since"
	untilArg  = "until"
	classArg  = "class"
	failedArg = "failed"
	lastArg   = "last"

	// queuesURL is URL used to obtain depths of the resource queues.
	queuesURL = urlPrefix + "queues"

	// flushURL is URL used to request immediate flush of all queues.
	flushURL = urlPrefix + "flush"
)

// errorString wraps string representation of an error that, unlike the original
// error, can be marshalled.
type errorString struct {
	Error string
}

// registerHandlers registers all supported REST APIs.
func (c *Controller) registerHandlers() {
	if c.HTTPHandlers == nil {
		c.Log.Warn("No http handler provided, skipping registration of Controller REST handlers")
		return
	}
	c.HTTPHandlers.RegisterHTTPHandler(batchHistoryURL, c.batchHistoryGetHandler, "GET")
	c.HTTPHandlers.RegisterHTTPHandler(queuesURL, c.queuesGetHandler, "GET")
	c.HTTPHandlers.RegisterHTTPHandler(flushURL, c.flushReqHandler, "POST")
}

// historyFilter selects records from the batch history.
type historyFilter struct {
	seqNum     uint64
	since      time.Time
	until      time.Time
	class      string
	failedOnly bool
	last       int
}

// parseHistoryFilter builds the filter from the query arguments.
func parseHistoryFilter(args url.Values) (filter historyFilter, err error) {
	if arg := args.Get(seqNumArg); arg != "" {
		if filter.seqNum, err = strconv.ParseUint(arg, 10, 64); err != nil {
			return filter, errors.Wrapf(err, "invalid %s", seqNumArg)
		}
	}
	if arg := args.Get(sinceArg); arg != "" {
		if filter.since, err = stringToTime(arg); err != nil {
			return filter, errors.Wrapf(err, "invalid %s", sinceArg)
		}
	}
	if arg := args.Get(untilArg); arg != "" {
		if filter.until, err = stringToTime(arg); err != nil {
			return filter, errors.Wrapf(err, "invalid %s", untilArg)
		}
	}
	if arg := args.Get(classArg); arg != "" {
		for _, class := range api.ResourceClasses {
			if class.String() == arg {
				filter.class = arg
			}
		}
		if filter.class == "" {
			return filter, errors.Errorf("invalid %s: %q", classArg, arg)
		}
	}
	if arg := args.Get(failedArg); arg != "" {
		if filter.failedOnly, err = strconv.ParseBool(arg); err != nil {
			return filter, errors.Wrapf(err, "invalid %s", failedArg)
		}
	}
	if arg := args.Get(lastArg); arg != "" {
		if filter.last, err = strconv.Atoi(arg); err != nil || filter.last < 0 {
			return filter, errors.Errorf("invalid %s: %q", lastArg, arg)
		}
	}
	return filter, nil
}

func (f historyFilter) matches(record *BatchRecord) bool {
	switch {
	case f.seqNum != 0 && record.SeqNum != f.seqNum:
		return false
	case !f.since.IsZero() && record.ProcessingEnd.Before(f.since):
		return false
	case !f.until.IsZero() && record.ProcessingStart.After(f.until):
		return false
	case f.class != "" && record.Class != f.class:
		return false
	case f.failedOnly && record.Error == nil:
		return false
	}
	return true
}

// apply returns the matching records, oldest first.
func (f historyFilter) apply(history []*BatchRecord) []*BatchRecord {
	selected := []*BatchRecord{}
	for _, record := range history {
		if f.matches(record) {
			selected = append(selected, record)
		}
	}
	if f.last > 0 && len(selected) > f.last {
		selected = selected[len(selected)-f.last:]
	}
	return selected
}

// batchHistoryGetHandler is the GET handler for "batch-history" API.
func (c *Controller) batchHistoryGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter, err := parseHistoryFilter(req.URL.Query())
		if err != nil {
			formatter.JSON(w, http.StatusBadRequest, errorString{err.Error()})
			return
		}
		history := c.selectBatches(filter)
		if filter.seqNum == 0 {
			formatter.JSON(w, http.StatusOK, history)
			return
		}
		if len(history) == 0 {
			formatter.JSON(w, http.StatusNotFound,
				errorString{fmt.Sprintf("batch %s is not recorded", batchSeqNumToStr(filter.seqNum))})
			return
		}
		formatter.JSON(w, http.StatusOK, history[0])
	}
}

// queuesGetHandler is the GET handler for "queues" API.
func (c *Controller) queuesGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		depths := make(map[string]int)
		for _, class := range api.ResourceClasses {
			depths[class.String()] = c.QueueDepth(class)
		}
		formatter.JSON(w, http.StatusOK, depths)
	}
}

// flushReqHandler is the POST handler for "flush" API.
func (c *Controller) flushReqHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c.Flush()
		formatter.JSON(w, http.StatusOK, "Flush request was successfully dispatched.")
	}
}

// stringToTime converts Unix timestamp from string to time.Time.
func stringToTime(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}
