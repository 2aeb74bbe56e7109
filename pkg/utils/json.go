/*
Copyright 2021 Intel Corporation

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package utils

import (
	"encoding/json"
	"fmt"
)

// DumpJSON dumps a json-compatible struct in human-readable form
func DumpJSON(r interface{}) string {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("<!!! FAILED TO MARSHAL %T (%v) !!!>\n", r, err)
	}
	return string(out)
}
