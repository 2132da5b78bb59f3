// SPDX-License-Identifier: BSD-3-Clause

package deploy

import (
	"bytes"
	"fmt"
	"text/template"
)

var linuxInstallTemplate = template.Must(template.New("linux-install").Parse(`#!/bin/sh
set -e

PANKHA_SERVER_URL="{{.ServerURL}}"
PANKHA_AGENT_NAME="{{.AgentName}}"
PANKHA_BINARY_URL="{{.BinaryURL}}"

install_dir="/opt/pankha"
mkdir -p "$install_dir"

curl -fsSL "$PANKHA_BINARY_URL" -o "$install_dir/pankha-agent"
chmod +x "$install_dir/pankha-agent"

"$install_dir/pankha-agent" --setup \
	--server-url "$PANKHA_SERVER_URL" \
	--name "$PANKHA_AGENT_NAME"

echo "Pankha agent installed at $install_dir. Start it with: $install_dir/pankha-agent --start"
`))

// RenderLinuxInstallScript fills the install script template with the
// bootstrap config embedded in a verified deployment token, plus the URL
// the script should pull the staged agent binary from.
func RenderLinuxInstallScript(bootstrap BootstrapConfig, binaryURL string) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		BootstrapConfig
		BinaryURL string
	}{bootstrap, binaryURL}
	if err := linuxInstallTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render install script: %w", err)
	}
	return buf.Bytes(), nil
}
