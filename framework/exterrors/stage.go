/*
mfetch - privilege-separated mail retrieval and filtering agent
Copyright © 2023 mfetch contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package exterrors

// WithStage annotates err with the name of the processing stage it aborted
// ("fetching", "matching", "delivery", ...). The stage is reported in the
// per-account abort warning and is not meant to be branched on beyond that.
func WithStage(err error, stage string) error {
	return WithFields(err, map[string]interface{}{"stage": stage})
}

// Stage extracts the stage annotation added by WithStage. It returns an
// empty string if err carries none.
func Stage(err error) string {
	stage, _ := Fields(err)["stage"].(string)
	return stage
}
