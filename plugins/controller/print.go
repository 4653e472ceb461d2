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
	"strconv"
	"strings"
	"time"
)

// maximum number of operations listed in the banner of a new batch
const maxBannerOperations = 20

// printNewBatch prints a banner into stdout about a batch being committed.
func (c *Controller) printNewBatch(record *BatchRecord) {
	var buf strings.Builder

	border := strings.Repeat(">", 130) + "\n"
	buf.WriteString(border)

	headline := fmt.Sprintf("NEW BATCH: %s queue, %d group(s), %d operation(s)",
		record.Class, record.Groups, len(record.Operations))
	buf.WriteString(fmt.Sprintf("*   %-113s %10s *\n", headline, batchSeqNumToStr(record.SeqNum)))

	operations := record.Operations
	if len(operations) > maxBannerOperations {
		operations = operations[:maxBannerOperations]
	}
	for _, opLine := range splitLongLines(operations, 118, 4) {
		buf.WriteString(fmt.Sprintf("*       %-118s *\n", opLine))
	}
	if hidden := len(record.Operations) - len(operations); hidden > 0 {
		buf.WriteString(fmt.Sprintf("*       %-118s *\n", fmt.Sprintf("... and %d more", hidden)))
	}

	buf.WriteString(border)
	fmt.Print(buf.String())
}

// printFinalizedBatch prints a banner into stdout about a finalized batch.
func (c *Controller) printFinalizedBatch(record *BatchRecord) {
	var buf strings.Builder

	border := strings.Repeat("<", 130) + "\n"
	buf.WriteString(border)

	outcome := fmt.Sprintf("committed at revision %d", record.Revision)
	if record.Error != nil {
		outcome = "failed"
	}
	buf.WriteString(fmt.Sprintf("*   FINALIZED BATCH: %-96s %10s *\n",
		fmt.Sprintf("%s queue, %s", record.Class, outcome), batchSeqNumToStr(record.SeqNum)))

	duration := fmt.Sprintf("took %v",
		record.ProcessingEnd.Sub(record.ProcessingStart).Round(time.Millisecond))
	buf.WriteString(fmt.Sprintf("*   ATTEMPTS: %-93s %20s *\n",
		strconv.Itoa(record.Attempts), duration))

	if record.Error != nil {
		errLines := splitLongLines([]string{record.ErrorStr}, 104, 4)
		buf.WriteString(fmt.Sprintf("*   TRANSACTION ERROR: %-105s *\n", errLines[0]))
		for _, errLine := range errLines[1:] {
			buf.WriteString(fmt.Sprintf("*                      %-105s *\n", errLine))
		}
	}

	buf.WriteString(border)
	fmt.Print(buf.String())
}

// batchSeqNumToStr returns string representing batch sequence number.
func batchSeqNumToStr(seqNum uint64) string {
	return "#" + strconv.FormatUint(seqNum, 10)
}

// splitLongLines splits too long lines into multiple lines by space,
// each to the maximum allowed length.
func splitLongLines(lines []string, limit int, indent int) (splited []string) {
	for _, line := range lines {
		if len(line) <= limit {
			splited = append(splited, line)
			continue
		}

		words := strings.Split(line, " ")
		var (
			newLine  string
			newLines []string
		)
		for i := 0; i < len(words); i++ {
			word := words[i]

			// first word is added regardless of its length
			if newLine == "" {
				if len(newLines) > 0 {
					// indent added to newly introduced lines
					newLine += strings.Repeat(" ", indent)
				}
				newLine += word
				continue
			}

			// it newLine+word would overflow the limit -> start a new line
			wordLen := len(word) + 1 // + preceding space
			if len(newLine)+wordLen > limit {
				newLines = append(newLines, newLine)
				newLine = ""
				i-- // replay the word
				continue
			}

			newLine += " " + word
		}
		if newLine != "" {
			newLines = append(newLines, newLine)
		}
		splited = append(splited, newLines...)
	}
	return splited
}
