// Package conventions contains the steps of a standard package deployment.
//
// Default returns them in the order they run:
//
//  1. contribute-environment-variables
//  2. ensure-disk-space
//  3. PreDeploy configured script, then PreDeploy package scripts
//  4. copy-to-custom-installation-directory
//  5. Deploy configured script, then Deploy package scripts
//  6. PostDeploy configured script, then PostDeploy package scripts
//
// Script-bearing conventions share a ScriptExecutor, which wires the script
// engine's output into the service message processor of the deployment.
package conventions
