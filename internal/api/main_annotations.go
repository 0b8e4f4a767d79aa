// @title           templatesmith API
// @version         1.0
// @description     Generates Jinja HTML templates from a prompt, a variable list and sample JSON.
// @BasePath        /
package api
