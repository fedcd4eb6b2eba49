package canopy

import "fmt"

// cdMarkerPrefix tags the line carrying the directory a shell wrapper should
// cd into. Only emitted when CANOPY_EMIT_CD_MARKER=1, so plain invocations
// never see it.
const cdMarkerPrefix = "__CANOPY_CD__="

const posixHook = `%[1]s() {
  local _out _rc _cd _line
  _out="$(%[2]s=1 command canopy "$@")"
  _rc=$?
  _cd=""

  if [ -n "$_out" ]; then
    while IFS= read -r _line; do
      case "$_line" in
        %[3]s*) _cd="${_line#%[3]s}" ;;
        *) printf '%%s\n' "$_line" ;;
      esac
    done <<EOF
$_out
EOF
  fi

  if [ -n "$_cd" ]; then
    cd "$_cd" || return
  fi
  return $_rc
}
`

const fishHook = `function %[1]s
  set -l _out (env %[2]s=1 command canopy $argv)
  set -l _rc $status
  set -l _cd ""

  for line in $_out
    if string match -q '%[3]s*' -- $line
      set _cd (string replace '%[3]s' '' -- $line)
    else
      echo $line
    end
  end

  if test -n "$_cd"
    cd "$_cd"
  end
  return $_rc
end
`

// ShellHook renders the cnp() wrapper for the given shell. The wrapper runs
// canopy with the cd marker enabled, strips the marker line from the output,
// and changes into the directory it named.
func ShellHook(shell string) (string, error) {
	switch shell {
	case "zsh", "bash":
		return fmt.Sprintf(posixHook, "cnp", "CANOPY_EMIT_CD_MARKER", cdMarkerPrefix), nil
	case "fish":
		return fmt.Sprintf(fishHook, "cnp", "CANOPY_EMIT_CD_MARKER", cdMarkerPrefix), nil
	default:
		return "", fmt.Errorf("unsupported shell: %s (zsh, bash and fish are supported)", shell)
	}
}
