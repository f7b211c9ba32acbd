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

package mail

// FillWrapped records the position of every newline in the header region
// that is followed by whitespace, i.e. every point where a header line was
// folded. The positions allow the folds to be flattened for matching and
// restored afterwards. Returns the number of wrapped lines found.
func (m *Mail) FillWrapped() int {
	m.Wrapped = m.Wrapped[:0]

	end := m.HeaderEnd()
	for i := 0; i+1 < end; i++ {
		if m.Content[i] != '\n' {
			continue
		}
		if m.Content[i+1] == ' ' || m.Content[i+1] == '\t' {
			m.Wrapped = append(m.Wrapped, i)
		}
	}
	return len(m.Wrapped)
}

// SetWrapped overwrites every recorded wrapped-line position with the given
// byte. Writing ' ' joins folded headers into single logical lines for
// matching; writing '\n' restores the original physical form.
func (m *Mail) SetWrapped(c byte) {
	for _, pos := range m.Wrapped {
		if pos >= 0 && pos < len(m.Content) {
			m.Content[pos] = c
		}
	}
}
