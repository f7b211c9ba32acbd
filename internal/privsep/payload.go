/*
mfetch - privilege-separated mail retrieval and filtering agent
Copyright © 2023 mfetch contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY and FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package privsep

import (
	"encoding/binary"
	"encoding/json"
)

// Action payloads carry the serialized tag set followed by the raw message
// content: a 4-byte big-endian tag block length, the tag block (JSON), and
// the content bytes. The completion reply uses the same layout; the
// content part is empty except for write-back deliveries.

// EncodePayload builds an action payload from a tag set and message
// content.
func EncodePayload(tags map[string]string, content []byte) ([]byte, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	tagBlock, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 4, 4+len(tagBlock)+len(content))
	binary.BigEndian.PutUint32(payload, uint32(len(tagBlock)))
	payload = append(payload, tagBlock...)
	payload = append(payload, content...)
	return payload, nil
}

// DecodePayload splits an action payload back into the tag set and
// content. A missing or malformed tag block is a ProtocolError: the tag
// set is mandatory in every action payload, so its absence means the
// channel can no longer be trusted.
func DecodePayload(payload []byte) (map[string]string, []byte, error) {
	if len(payload) < 4 {
		return nil, nil, &ProtocolError{Reason: "payload too short for tag block"}
	}
	tagLen := binary.BigEndian.Uint32(payload)
	if tagLen == 0 || uint64(tagLen) > uint64(len(payload)-4) {
		return nil, nil, &ProtocolError{Reason: "bad tag block length"}
	}

	var tags map[string]string
	if err := json.Unmarshal(payload[4:4+tagLen], &tags); err != nil {
		return nil, nil, &ProtocolError{Reason: "malformed tag block", Err: err}
	}

	content := payload[4+tagLen:]
	if len(content) == 0 {
		return tags, nil, nil
	}
	return tags, content, nil
}
